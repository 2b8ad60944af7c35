package directory

import "fmt"

const (
	// KeyPrefixName is the prefix for name -> endpoint keys
	KeyPrefixName = "standby:directory:name:"
	// KeyAllNames is the key for the set of all registered names
	KeyAllNames = "standby:directory:names"
)

// NameKey returns the Redis key holding the endpoint of a name
func NameKey(name string) string {
	return KeyPrefixName + name
}

// ExtractName extracts the registered name from a Redis key
func ExtractName(key string) (string, error) {
	if len(key) <= len(KeyPrefixName) || key[:len(KeyPrefixName)] != KeyPrefixName {
		return "", fmt.Errorf("invalid directory key: %s", key)
	}
	return key[len(KeyPrefixName):], nil
}
