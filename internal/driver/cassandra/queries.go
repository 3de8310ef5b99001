package cassandra

// Catalog queries against system_schema.
const (
	queryListKeyspaces = `SELECT keyspace_name FROM system_schema.keyspaces`

	queryListTables = `SELECT table_name FROM system_schema.tables WHERE keyspace_name = ?`

	queryGetColumns = `
		SELECT column_name, type, kind, position
		FROM system_schema.columns
		WHERE keyspace_name = ? AND table_name = ?`
)
