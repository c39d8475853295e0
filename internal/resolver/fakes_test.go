package resolver

import (
	"context"
	"strings"
	"sync"
	"time"

	"horse.fit/nycpedia/internal/wiki"
)

type fakeArticles struct {
	mu         sync.Mutex
	summaries  map[string]*wiki.ArticleSummary
	categories map[string][]string
	searches   map[string][]string
	guesses    map[string]string
	failing    map[string]error
	// gates block Summary for a key until the caller's context is done.
	gates   map[string]chan struct{}
	entered chan string
	// holdGuesses blocks every QuickGuess until it is closed or the caller's
	// context is done. guessStarted is closed by the first blocked guess.
	holdGuesses  chan struct{}
	guessStarted chan struct{}
	guessOnce    sync.Once
	calls        map[string]int
}

func newFakeArticles() *fakeArticles {
	return &fakeArticles{
		summaries:  make(map[string]*wiki.ArticleSummary),
		categories: make(map[string][]string),
		searches:   make(map[string][]string),
		guesses:    make(map[string]string),
		failing:    make(map[string]error),
		gates:      make(map[string]chan struct{}),
		calls:      make(map[string]int),
	}
}

func (f *fakeArticles) addSummary(s *wiki.ArticleSummary, categories ...string) {
	key := wiki.ArticleKey(s.Language, s.Title)
	f.summaries[key] = s
	f.categories[key] = categories
}

func (f *fakeArticles) count(kind string) {
	f.mu.Lock()
	f.calls[kind]++
	f.mu.Unlock()
}

func (f *fakeArticles) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeArticles) Summary(ctx context.Context, lang, title string) (*wiki.ArticleSummary, error) {
	key := wiki.ArticleKey(lang, title)
	f.count("summary:" + key)
	if gate, ok := f.gates[key]; ok {
		if f.entered != nil {
			f.entered <- key
		}
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := f.failing["summary:"+key]; err != nil {
		return nil, err
	}
	return f.summaries[key], nil
}

func (f *fakeArticles) Categories(_ context.Context, lang, title string) ([]string, error) {
	key := wiki.ArticleKey(lang, title)
	f.count("categories:" + key)
	if err := f.failing["categories:"+key]; err != nil {
		return nil, err
	}
	return f.categories[key], nil
}

func (f *fakeArticles) Search(_ context.Context, lang, query string, _ int) ([]string, error) {
	key := lang + "|" + query
	f.count("search:" + key)
	if err := f.failing["search:"+key]; err != nil {
		return nil, err
	}
	return f.searches[key], nil
}

func (f *fakeArticles) QuickGuess(ctx context.Context, lang, query string) (string, error) {
	key := lang + "|" + query
	f.count("guess:" + key)
	if f.holdGuesses != nil {
		if f.guessStarted != nil {
			f.guessOnce.Do(func() { close(f.guessStarted) })
		}
		select {
		case <-f.holdGuesses:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.guesses[key], nil
}

func (f *fakeArticles) callCount(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[kind]
}

type fakeGraph struct {
	mu       sync.Mutex
	entities map[string]*wiki.Entity
	labels   map[string][]string
	events   map[string][]map[string]string
	failing  map[string]error
	// queryDelay and labelDelay make Query and SearchByLabel wait for the
	// delay or the context.
	queryDelay time.Duration
	labelDelay time.Duration
	calls      map[string]int
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{
		entities: make(map[string]*wiki.Entity),
		labels:   make(map[string][]string),
		events:   make(map[string][]map[string]string),
		failing:  make(map[string]error),
		calls:    make(map[string]int),
	}
}

func (f *fakeGraph) add(id string, claims map[string][]string) {
	f.entities[id] = &wiki.Entity{ID: id, Claims: claims}
}

func (f *fakeGraph) count(kind string) {
	f.mu.Lock()
	f.calls[kind]++
	f.mu.Unlock()
}

func (f *fakeGraph) callsWithPrefix(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for kind, c := range f.calls {
		if strings.HasPrefix(kind, prefix) {
			n += c
		}
	}
	return n
}

func (f *fakeGraph) Entity(_ context.Context, id string) (*wiki.Entity, error) {
	f.count("entity:" + id)
	if err := f.failing["entity:"+id]; err != nil {
		return nil, err
	}
	return f.entities[id], nil
}

func (f *fakeGraph) SearchByLabel(ctx context.Context, text, lang string, _ int) ([]string, error) {
	f.count("label:" + lang + "|" + text)
	if f.labelDelay > 0 {
		select {
		case <-time.After(f.labelDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.labels[lang+"|"+text], nil
}

func (f *fakeGraph) Query(ctx context.Context, sparql string) ([]map[string]string, error) {
	f.count("query")
	if f.queryDelay > 0 {
		select {
		case <-time.After(f.queryDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	for personID, rows := range f.events {
		if strings.Contains(sparql, "wd:"+personID+" wdt:") {
			return rows, nil
		}
	}
	return nil, nil
}

type fakeObserver struct {
	mu          sync.Mutex
	resolutions map[string]int
	phases      map[string]int
	hits        int
	misses      int
}

func newFakeObserver() *fakeObserver {
	return &fakeObserver{resolutions: make(map[string]int), phases: make(map[string]int)}
}

func (o *fakeObserver) ObserveResolution(outcome, phase string, _ time.Duration) {
	o.mu.Lock()
	o.resolutions[outcome+"/"+phase]++
	o.mu.Unlock()
}

func (o *fakeObserver) ObservePhase(phase string, _ int, _ time.Duration) {
	o.mu.Lock()
	o.phases[phase]++
	o.mu.Unlock()
}

func (o *fakeObserver) ObserveCache(_ string, hit bool) {
	o.mu.Lock()
	if hit {
		o.hits++
	} else {
		o.misses++
	}
	o.mu.Unlock()
}

func newTestResolver(articles *fakeArticles, graph *fakeGraph) *Resolver {
	return New(articles, graph, Options{})
}
