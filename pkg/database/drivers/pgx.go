package drivers

import (
	// Register pgx under database/sql driver name "pgx" for the shared
	// PostgreSQL favourites backend.
	_ "github.com/jackc/pgx/v5/stdlib"
)
