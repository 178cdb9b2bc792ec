// Package driver defines the key-value contract every data backend must
// satisfy, plus the typed records stored through it. All three tables of one
// data cycle live under a single named channel; Rebuild truncates them
// together.
package driver

// Table names of one data cycle.
const (
	TableFilter  = "filter"
	TableRule    = "rule"
	TableSession = "session"
)

// AllTables lists every table of a data cycle, used by Rebuild.
var AllTables = []string{TableFilter, TableRule, TableSession}

// Driver is the storage contract consumed by the decision pipeline.
// Values are opaque encoded records; Get reports presence explicitly so an
// absent key is not an error. Implementations must make each call atomic
// with respect to concurrent calls on the same driver.
type Driver interface {
	// Get returns the stored value for key in table, and whether it exists.
	Get(key, table string) ([]byte, bool, error)

	// Save upserts the value for key in table.
	Save(key string, value []byte, table string) error

	// Delete removes key from table. Deleting an absent key is not an error.
	Delete(key, table string) error

	// GetAll returns every value in table, in unspecified order.
	GetAll(table string) ([][]byte, error)

	// Rebuild truncates and recreates all tables of the current channel.
	Rebuild() error

	// SetChannel switches the namespace for all subsequent operations.
	SetChannel(name string)

	// Close releases the backend connection.
	Close() error
}
