package helper

import (
	"fmt"
	"os"

	om "github.com/cevaris/ordered_map"
	"github.com/healthpulse/healthpulse/logger"
)

// GetEnvVar fetches OS environment variable.
// If the variable is not set it returns empty string.
// It also returns an error if there is a missing value AND mandatory == true.
func GetEnvVar(k string, mandatory bool) (string, error) {
	if value := os.Getenv(k); value != "" {
		return value, nil
	} else {
		if mandatory {
			return "", fmt.Errorf("environment variable %v is not set", k)
		} else {
			return "", nil
		}
	}
}

// StringSliceToOrderedMap adds each value in s to an ordered map with key and value set to the value in s.
func StringSliceToOrderedMap(s []string) *om.OrderedMap {
	retval := om.NewOrderedMap()
	for _, v := range s {
		retval.Set(v, v)
	}
	return retval
}

// OrderedMapKeysToStringSlice returns the keys of ordered map 'm' preserving insertion order.
func OrderedMapKeysToStringSlice(log logger.Logger, m *om.OrderedMap) []string {
	iter := m.IterFunc()
	if iter == nil {
		log.Panic("Failed to get iterFunc in OrderedMapKeysToStringSlice()")
	}
	retval := make([]string, 0, m.Len())
	for kv, ok := iter(); ok; kv, ok = iter() {
		retval = append(retval, kv.Key.(string))
	}
	return retval
}
