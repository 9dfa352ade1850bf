package chain

// Minimal ABI fragments for the three contracts the engine touches. Only the
// methods actually called are declared.
const (
	erc20ABI = `[
		{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
	]`

	vaultFactoryABI = `[
		{"name":"getVaultAddress","type":"function","stateMutability":"view","inputs":[{"name":"salt","type":"bytes32"},{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"address"}]},
		{"name":"deployVault","type":"function","stateMutability":"nonpayable","inputs":[{"name":"salt","type":"bytes32"},{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"address"}]}
	]`

	vaultContractABI = `[
		{"name":"sweep","type":"function","stateMutability":"nonpayable","inputs":[{"name":"token","type":"address"}],"outputs":[]}
	]`
)
