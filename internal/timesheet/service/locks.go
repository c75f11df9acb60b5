package service

import "sync"

// employeeLocks serializes ledger mutations per employee. Different employees
// proceed in parallel; one employee's replay is never concurrent with another
// mutation of the same employee.
type employeeLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newEmployeeLocks() *employeeLocks {
	return &employeeLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for one employee and returns the unlock func
func (l *employeeLocks) Lock(employeeID string) func() {
	l.mu.Lock()
	m, ok := l.locks[employeeID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[employeeID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
