package bitstream

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestGIDAssociation(t *testing.T) {
	wg := sync.WaitGroup{}

	for i := 0; i < 100; i++ {
		source := fmt.Sprintf("input-%d", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			AssociateGIDWithSource(source)
			defer DissociateGIDFromSource()
			// Randomize scheduling a bit
			time.Sleep(time.Millisecond*5 + time.Millisecond*time.Duration(rand.Intn(10)))
			rSource, ok := GIDSource()
			require.True(t, ok)
			require.Equal(t, source, rSource)
		}()
	}

	wg.Wait()

	_, ok := GIDSource()
	require.False(t, ok)
}

func TestWarnErrCapturing(t *testing.T) {
	wg := sync.WaitGroup{}

	for i := 0; i < 20; i++ {
		source := fmt.Sprintf("capture-%d", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			errChan := make(chan string, 5)
			RegisterWarnErrChanForSource(source, errChan)
			AssociateGIDWithSource(source)

			log.Debug("not captured")
			log.Warn(fmt.Sprintf("Warn %s", source))
			log.Error(fmt.Sprintf("Error %s", source), "table_id", 2)

			DissociateGIDFromSource()
			SourceEnded(source)

			var got []string
			for s := range errChan {
				got = append(got, s)
			}
			require.Equal(t, []string{
				fmt.Sprintf("WARN Warn %s", source),
				fmt.Sprintf("ERROR Error %s table_id 2", source),
			}, got)
		}()
	}

	wg.Wait()
}

func TestIsDecodeError(t *testing.T) {
	require.True(t, IsDecodeError(ErrCrcMismatch))
	require.True(t, IsDecodeError(fmt.Errorf("wrapped: %w", ErrMalformedList)))
	require.False(t, IsDecodeError(fmt.Errorf("io failure")))
	require.False(t, IsDecodeError(nil))
}
