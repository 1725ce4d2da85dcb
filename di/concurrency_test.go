package di

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrentOperations(t *testing.T) {
	parent := newTestContainer(t)
	child := newTestContainer(t, WithParent(parent))
	cat := newMemCatalog()
	require.NoError(t, child.AddCatalog(cat))
	require.NoError(t, child.AddType("", Describe[*service](), false))
	svc := MustResolve[*service](child, "")

	const workers = 8
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(3)
		go func(w int) {
			defer wg.Done()
			p := &plugin{name: fmt.Sprintf("parent-%d", w)}
			assert.NoError(t, parent.AddInstance("plugins", p))
			assert.NoError(t, parent.RemoveInstance("plugins", p))
		}(w)
		go func(w int) {
			defer wg.Done()
			cat.set(fmt.Sprintf("cat-%d", w), InstanceExport("", &journal{}))
		}(w)
		go func() {
			defer wg.Done()
			_, err := ResolveAll[*plugin](child, "plugins")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	final := &plugin{name: "final"}
	require.NoError(t, parent.AddInstance("plugins", final))
	_, err := child.Recompose(0)
	require.NoError(t, err)
	assert.Equal(t, []*plugin{final}, svc.Plugins)

	for w := 0; w < workers; w++ {
		_, ok := TryResolve[*journal](child, fmt.Sprintf("cat-%d", w))
		assert.True(t, ok)
	}
}
