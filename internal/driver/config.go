package driver

import (
	"hash/crc32"

	"github.com/go-viper/mapstructure/v2"
)

// Config is implemented by per-backend configuration structs that can flatten
// themselves into a generic map for Load.
type Config interface {
	ToMap() map[string]interface{}
}

// Decode maps a generic configuration map onto a backend config struct using
// its mapstructure tags.
func Decode(in map[string]interface{}, out interface{}) error {
	return mapstructure.Decode(in, out)
}

// advisoryLockSalt matches golang-migrate so independent tools targeting the
// same table contend on the same key.
const advisoryLockSalt uint32 = 1486364155

// LockKey derives the session-lock key for a migration table. Two runners
// pointed at the same (schema, table, database) always compute the same key.
func LockKey(names ...string) int64 {
	sum := crc32.NewIEEE()
	for i, n := range names {
		if i > 0 {
			_, _ = sum.Write([]byte{0})
		}
		_, _ = sum.Write([]byte(n))
	}
	return int64(sum.Sum32() * advisoryLockSalt)
}
