// Package dummydb keeps every table in memory. It backs tests and the "memory" database engine.
package dummydb

import (
	"sync"

	"github.com/trezcool/kaushal/core/analysis"
	"github.com/trezcool/kaushal/core/user"
)

type (
	DB struct {
		user     *userTable
		analysis *analysisTables
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	analysisRecord struct {
		scope analysis.Scope
		row   analysis.Row
	}

	analysisTables struct {
		sync.RWMutex
		pkCount int64
		tables  map[string][]*analysisRecord // screen table -> records in id order
	}
)

func Open() (*DB, error) {
	db := &DB{
		user:     &userTable{table: make(map[string]*user.User)},
		analysis: &analysisTables{tables: make(map[string][]*analysisRecord)},
	}
	return db, nil
}
