package storage

import "gastos/internal/core"

// RemapAccountRefs rewrites the account references of expenses and incomes
// through ids (old ID to new ID). References missing from ids are cleared.
func RemapAccountRefs(snap *core.Snapshot, ids map[int64]int64) {
	remap := func(id int64) int64 {
		if id == 0 {
			return 0
		}
		return ids[id]
	}
	for _, list := range snap.Expenses {
		for i := range list {
			list[i].PaidFrom = remap(list[i].PaidFrom)
		}
	}
	for _, list := range snap.Incomes {
		for i := range list {
			list[i].DepositedTo = remap(list[i].DepositedTo)
		}
	}
}
