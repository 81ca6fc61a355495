package core

// Drivers registered for the dialects that ship with the module.
// SQL Server has no driver here; import one (for example
// github.com/microsoft/go-mssqldb) and open it under "sqlserver".
import (
	_ "github.com/go-sql-driver/mysql" // mysql
	_ "github.com/lib/pq"              // postgres
	_ "github.com/mattn/go-sqlite3"    // sqlite3
)
