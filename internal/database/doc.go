// Package database provides the local persistent store of the client.
//
// # Architecture
//
//	database/
//	├── database.go      # Connection setup, migrations, change hub
//	├── table.go         # Generic Table[E] with upsert/delete/find and watches
//	├── change.go        # Change events published after each commit
//	└── syncstate/       # Per-scope sync ledger (lastSyncedAt)
//
// # Tables
//
// Every cached entity type gets one Table. Rows are keyed by the server id and
// partitioned by an optional scope column:
//
//	db, err := database.NewDatabase("./vetsync.db", database.Options{})
//	animals, err := database.NewTable[entities.Animal](db, database.TableConfig{
//		ScopeColumn: entities.AnimalScopeColumn,
//	})
//
//	err = animals.Transaction(ctx, func(tx database.Writer[entities.Animal]) error {
//		if err := tx.DeleteWhere(ctx, tutorID); err != nil {
//			return err
//		}
//		return tx.UpsertAll(ctx, rows)
//	})
//
// # Change notification
//
// Writes publish a Change on the table topic of the database hub only after
// the surrounding transaction commits. Watchers are called asynchronously and
// never observe a rolled back write.
package database
