package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("NUZULSTAY_TEST_MODE") == "" {
			_ = os.Setenv("NUZULSTAY_TEST_MODE", "1")
		}
	})
}
