package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/RobertWHurst/boreas"
	"github.com/RobertWHurst/boreas/hook/setfn"
	"github.com/RobertWHurst/boreas/middleware/compress"
	"github.com/RobertWHurst/boreas/middleware/json"
	"github.com/RobertWHurst/boreas/middleware/requestlog"
)

type noteStore struct {
	mx    sync.Mutex
	next  int64
	notes map[int64]string
}

func (s *noteStore) add(text string) int64 {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.next++
	s.notes[s.next] = text
	return s.next
}

func (s *noteStore) get(id int64) (string, bool) {
	s.mx.Lock()
	defer s.mx.Unlock()
	text, ok := s.notes[id]
	return text, ok
}

func (s *noteStore) all() map[string]any {
	s.mx.Lock()
	defer s.mx.Unlock()
	notes := map[string]any{}
	for id, text := range s.notes {
		notes[fmt.Sprintf("%d", id)] = text
	}
	return notes
}

func main() {
	opts := []boreas.Option{boreas.WithDebug(true)}
	if path := os.Getenv("BOREAS_CONFIG"); path != "" {
		cfg, err := boreas.LoadConfig(path)
		if err != nil {
			fmt.Println("Error loading config:", err)
			os.Exit(1)
		}
		opts = []boreas.Option{boreas.WithConfig(cfg)}
	}

	app := boreas.New(opts...)
	store := &noteStore{notes: map[int64]string{}}

	app.OnStartup(func(ctx context.Context) error {
		store.add("welcome to boreas")
		return nil
	})
	app.OnShutdown(func(ctx context.Context) error {
		app.Logger().Info("notes at shutdown", "count", len(store.all()))
		return nil
	})

	app.UseMiddleware(json.Middleware(), boreas.WithOrder(800))
	app.UseMiddleware(requestlog.Middleware(), boreas.WithOrder(1000))
	app.UseMiddleware(compress.Middleware(), boreas.WithOrder(900))

	app.Before(setfn.Hook("requestID", func() string {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}))

	app.Rule("/notes", func(ctx *boreas.Context) (any, error) {
		return store.all(), nil
	})

	app.Rule("/notes/{id}", func(ctx *boreas.Context) (any, error) {
		id, ok := ctx.Params().Int("id")
		if !ok {
			return nil, boreas.BadRequest("note ids are numeric")
		}
		text, ok := store.get(id)
		if !ok {
			return nil, boreas.NotFound(fmt.Sprintf("no note with id %d", id))
		}
		return map[string]any{"id": id, "text": text}, nil
	}, boreas.WithName("notes.detail"))

	app.Rule("/notes", func(ctx *boreas.Context) (any, error) {
		var body struct {
			Text string `json:"text"`
		}
		if err := ctx.BindJSON(&body); err != nil {
			return nil, boreas.BadRequest("notes need a json body with a text field")
		}
		id := store.add(body.Text)
		location, _ := app.URLFor("notes.detail", boreas.Params{"id": id})
		return boreas.WithStatus(map[string]any{"id": id, "location": location}, 201), nil
	}, boreas.WithMethods("POST"))

	app.WebSocket("/notes/feed", func(s *boreas.Socket) (any, error) {
		if err := s.Accept(); err != nil {
			return nil, err
		}
		for {
			var request struct {
				ID int64 `json:"id"`
			}
			if err := s.ReadJSON(&request); err != nil {
				return s, nil
			}
			text, ok := store.get(request.ID)
			if !ok {
				text = "no such note"
			}
			if err := s.SendJSON(map[string]any{"id": request.ID, "text": text}); err != nil {
				return s, nil
			}
		}
	})

	app.HandleStatus(404, func(ctx *boreas.Context, err *boreas.HTTPError) (any, error) {
		return map[string]any{"error": "not found", "path": ctx.Path()}, nil
	})

	addr := ":8167"
	slog.Info("starting server", "addr", addr)
	if err := app.Run(context.Background(), addr); err != nil {
		fmt.Println("Error running server:", err)
		os.Exit(1)
	}
}
