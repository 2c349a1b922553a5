// Package all wires every built-in storage backend into the storage factory.
//
// It exists for side effects only: a blank import runs each backend's init,
// which registers its Factory and DDL builder, making the kinds "postgres",
// "mssql", "mysql" and "sqlite" available to storage.New and storage.EnsureTable.
//
//	import _ "fmpmunge/internal/storage/all"
package all

import (
	_ "fmpmunge/internal/storage/mssql"
	_ "fmpmunge/internal/storage/mysql"
	_ "fmpmunge/internal/storage/postgres"
	_ "fmpmunge/internal/storage/sqlite"
)
