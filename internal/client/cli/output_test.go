package cli

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// stickySession keeps its state across Start so every notice is printed.
type stickySession struct{ *fakeSession }

func (stickySession) Start(context.Context) {}

func TestOnUnauthorized_ConcurrentWithCommandOutput(t *testing.T) {
	var buf bytes.Buffer
	a := NewApp(stickySession{&fakeSession{state: loggedIn()}}, strings.NewReader(""), &buf, nil)

	const n = 100
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			a.onUnauthorized(context.Background())
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			fmt.Fprintln(a.out, "Profile updated")
		}
	}()
	wg.Wait()

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	counts := map[string]int{}
	for _, l := range lines {
		counts[l]++
	}
	assert.Equal(t, map[string]int{
		"Your session has expired. Please log in again.": n,
		"Profile updated":                                n,
	}, counts)
}

func TestNewLockedWriter_DoesNotWrapTwice(t *testing.T) {
	var buf bytes.Buffer
	lw := newLockedWriter(&buf)

	assert.Same(t, lw, newLockedWriter(lw))

	_, err := lw.Write([]byte("x"))
	assert.NoError(t, err)
	assert.Equal(t, "x", buf.String())
}
