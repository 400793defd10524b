package ledger

// SeedWallet is a test helper that stores a wallet directly in a memory
// store, bypassing the engine.
func SeedWallet(s *MemoryStore, w Wallet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wallets[w.ID] = w
}

// SeedTransaction is a test helper that stores a transaction directly in a
// memory store without touching any balance.
func SeedTransaction(s *MemoryStore, t Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions[t.ID] = t
}
