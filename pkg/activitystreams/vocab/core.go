package vocab

import (
	"bytes"
	_ "embed"
	"sync"
)

//go:embed activitystreams.yaml
var coreDefinition []byte

var loadCore = sync.OnceValues(func() (*Vocabulary, error) {
	return LoadDefinition(bytes.NewReader(coreDefinition))
})

// Core returns the ActivityStreams 2.0 core and extended types. The vocabulary
// is built once and shared.
func Core() (*Vocabulary, error) {
	return loadCore()
}
