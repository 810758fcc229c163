package ports

// WalletVerifier checks that a public key owns an address and signed a message
type WalletVerifier interface {
	VerifyWalletAuth(address, pubKeyB64, message, signatureB64 string) bool
}
