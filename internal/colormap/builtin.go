package colormap

import (
	"bytes"
	_ "embed"
	"fmt"
	"sync"
)

//go:embed builtin.yaml
var builtinYAML []byte

// Builtin returns the embedded collection. The same pointer is returned on
// every call.
var Builtin = sync.OnceValue(func() *Collection {
	coll, err := LoadYAML(bytes.NewReader(builtinYAML), "")
	if err != nil {
		panic(fmt.Errorf("failed to decode builtin colormaps: %w", err))
	}
	return coll
})
