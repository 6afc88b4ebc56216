// Package database provides the SQLite connection and schema migrations
// for Gadget Core.
//
// The connection runs with WAL mode, a busy timeout and foreign keys on,
// and the pool is limited to a single connection. Every query in the
// repositories built on top of it is parameterised.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migrations are additive. New columns must be nullable or carry a default,
// and every .up.sql ships with a .down.sql.
package database
