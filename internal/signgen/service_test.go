package signgen

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type countingGenerator struct {
	mu        sync.Mutex
	calls     []string
	cancelled []string
	err       error
	delay     time.Duration
}

func (g *countingGenerator) Generate(ctx context.Context, text string) (Image, error) {
	g.mu.Lock()
	g.calls = append(g.calls, text)
	g.mu.Unlock()
	if g.delay > 0 {
		select {
		case <-time.After(g.delay):
		case <-ctx.Done():
			g.mu.Lock()
			g.cancelled = append(g.cancelled, text)
			g.mu.Unlock()
			return Image{}, ctx.Err()
		}
	}
	if g.err != nil {
		return Image{}, g.err
	}
	return Image{Text: text, MIMEType: "image/png", Data: []byte("png:" + text)}, nil
}

func (g *countingGenerator) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func newTestService(gen Generator) (*Service, chan Result) {
	s := NewService(gen, 20*time.Millisecond, 4, nil, zerolog.Nop())
	results := make(chan Result, 8)
	s.OnResult(func(r Result) { results <- r })
	return s, results
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "thank you", Normalize("  Thank   YOU "))
	assert.Equal(t, "", Normalize(" \t "))
}

func TestService_DebounceKeepsLatest(t *testing.T) {
	gen := &countingGenerator{}
	s, results := newTestService(gen)
	defer s.Close()

	s.Request("hel")
	s.Request("hello")
	s.Request("hello there")

	select {
	case r := <-results:
		require.NoError(t, r.Err)
		assert.Equal(t, "hello there", r.Text)
		assert.Equal(t, "png:hello there", string(r.Image.Data))
	case <-time.After(2 * time.Second):
		t.Fatal("no result")
	}

	assert.Never(t, func() bool { return len(results) > 0 }, 60*time.Millisecond, 10*time.Millisecond)
	assert.Equal(t, 1, gen.count())
}

func TestService_NewRequestCancelsRunningGeneration(t *testing.T) {
	gen := &countingGenerator{delay: 300 * time.Millisecond}
	s, results := newTestService(gen)
	defer s.Close()

	s.Request("where is the station")
	require.Eventually(t, func() bool { return gen.count() == 1 }, time.Second, 5*time.Millisecond)

	s.Request("thank you")
	require.Eventually(t, func() bool {
		gen.mu.Lock()
		defer gen.mu.Unlock()
		return len(gen.cancelled) == 1 && gen.cancelled[0] == "where is the station"
	}, 100*time.Millisecond, 5*time.Millisecond)

	select {
	case r := <-results:
		require.NoError(t, r.Err)
		assert.Equal(t, "thank you", r.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("no result")
	}
	assert.Never(t, func() bool { return len(results) > 0 }, 50*time.Millisecond, 10*time.Millisecond)
}

func TestService_CachesByNormalizedText(t *testing.T) {
	gen := &countingGenerator{}
	s, _ := newTestService(gen)
	defer s.Close()

	_, err := s.Generate(context.Background(), "Good Morning")
	require.NoError(t, err)
	img, err := s.Generate(context.Background(), "  good   morning ")
	require.NoError(t, err)

	assert.Equal(t, "png:Good Morning", string(img.Data))
	assert.Equal(t, 1, gen.count())
}

func TestService_SharesInFlightRequests(t *testing.T) {
	gen := &countingGenerator{delay: 50 * time.Millisecond}
	s, _ := newTestService(gen)
	defer s.Close()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Generate(context.Background(), "water")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, gen.count())
}

func TestService_Disabled(t *testing.T) {
	gen := &countingGenerator{}
	s, results := newTestService(gen)
	defer s.Close()

	s.Request("hello")
	s.SetEnabled(false)
	s.Request("hello again")

	assert.Never(t, func() bool { return len(results) > 0 }, 80*time.Millisecond, 10*time.Millisecond)
	assert.Zero(t, gen.count())

	_, err := s.Generate(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestService_EmptyTextCancels(t *testing.T) {
	gen := &countingGenerator{}
	s, results := newTestService(gen)
	defer s.Close()

	s.Request("hello")
	s.Request("   ")

	assert.Never(t, func() bool { return len(results) > 0 }, 80*time.Millisecond, 10*time.Millisecond)
}

func TestService_ErrorsAreDelivered(t *testing.T) {
	gen := &countingGenerator{err: errors.New("quota")}
	s, results := newTestService(gen)
	defer s.Close()

	s.Request("hello")
	select {
	case r := <-results:
		assert.EqualError(t, r.Err, "quota")
	case <-time.After(2 * time.Second):
		t.Fatal("no result")
	}

	// Failures are not cached.
	_, err := s.Generate(context.Background(), "hello")
	assert.Error(t, err)
	assert.Equal(t, 2, gen.count())
}

func TestService_NoGenerator(t *testing.T) {
	s, _ := newTestService(nil)
	defer s.Close()

	_, err := s.Generate(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestNewGeminiGenerator_RequiresKey(t *testing.T) {
	_, err := NewGeminiGenerator(context.Background(), "", "")
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestImageFromResponse(t *testing.T) {
	_, err := imageFromResponse(nil, "x")
	assert.ErrorIs(t, err, ErrNoImage)

	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []*genai.Part{
			genai.NewPartFromText("here you go"),
			genai.NewPartFromBytes([]byte{1, 2, 3}, "image/png"),
		}},
	}}}
	img, err := imageFromResponse(resp, "hello")
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MIMEType)
	assert.Equal(t, "data:image/png;base64,AQID", img.DataURL())
}

func TestPrompt(t *testing.T) {
	p := Prompt("thank you")
	assert.Contains(t, p, `"thank you"`)
	assert.Contains(t, p, "American Sign Language")
}
