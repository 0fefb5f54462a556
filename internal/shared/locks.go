package shared

import (
	"fmt"
	"hash/fnv"
)

// LedgerLockKey builds the advisory lock key serialising postings per company.
func LedgerLockKey(companyID int64) int64 {
	return lockKey(fmt.Sprintf("ledger:company:%d", companyID))
}

// BankFeedLockKey builds the advisory lock key serialising imports per bank account.
func BankFeedLockKey(bankAccountID int64) int64 {
	return lockKey(fmt.Sprintf("bankfeed:account:%d", bankAccountID))
}

func lockKey(s string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return int64(h.Sum64())
}
