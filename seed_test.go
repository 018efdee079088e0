package hybridqa_test

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// seedOrders creates the Orders table the SQL provider counts.
func seedOrders(t *testing.T, path string) {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE Orders (OrderID INTEGER PRIMARY KEY, CustomerID TEXT);
INSERT INTO Orders (OrderID, CustomerID) VALUES (1, 'ALFKI'), (2, 'ANATR');`)
	require.NoError(t, err)
}
