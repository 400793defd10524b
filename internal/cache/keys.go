package cache

// Key layout. Every key is scoped by owner so an owner's views can be
// evicted without touching anyone else's.

func WalletsKey(ownerID string) string { return "wallets:" + ownerID }

func WalletKey(ownerID, id string) string { return "wallet:" + ownerID + ":" + id }

func TransactionsKey(ownerID string) string { return "transactions:" + ownerID }

func TransactionKey(ownerID, id string) string { return "transaction:" + ownerID + ":" + id }

func DebtsKey(ownerID string) string { return "debts:" + ownerID }

func DebtKey(ownerID, id string) string { return "debt:" + ownerID + ":" + id }

func transactionPattern(ownerID string) string { return "transaction:" + ownerID + ":*" }

func debtPattern(ownerID string) string { return "debt:" + ownerID + ":*" }
