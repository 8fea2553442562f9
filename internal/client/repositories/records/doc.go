// Package records is the client's local cache of encrypted vault records.
//
// The cache mirrors what the backing store returned on the last successful
// listing so an offline session can still list and reveal records. It holds
// only ciphertext and nonces; plaintext never touches disk.
//
// Key Types
//
//   - type Repository: interface used by the vault service
//   - type SQLiteRepository: SQLite implementation over dbx.DBTX
//
// Typical Usage
//
//	repo := records.NewSQLiteRepository(db)
//	_ = repo.ReplaceDomain(ctx, cryptox.Personal(), fetched)
//	list, _ := repo.ListByDomain(ctx, cryptox.Personal())
//	one, _ := repo.GetByID(ctx, id)
package records
