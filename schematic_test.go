package boreas_test

import (
	"net/http"
	"testing"

	"github.com/RobertWHurst/boreas"
)

func usersSchematic() *boreas.Schematic {
	users := boreas.NewSchematic("users")
	users.Rule("/", func(ctx *boreas.Context) (any, error) {
		return []string{"alice", "bob"}, nil
	})
	users.Rule("/{id}", func(ctx *boreas.Context) (any, error) {
		return "user " + ctx.Params().String("id"), nil
	}, boreas.WithName("detail"))
	users.WebSocket("/{id}/feed", func(s *boreas.Socket) (any, error) {
		return s, nil
	})
	return users
}

func TestSchematicMountsUnderPrefix(t *testing.T) {
	app := boreas.New()
	app.Include("/api/users", usersSchematic())
	server := serveApp(t, app)

	res, body := doRequest(t, "GET", server.URL+"/api/users/42", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}
	if body != "user 42" {
		t.Errorf("expected %q, got %q", "user 42", body)
	}

	res, _ = doRequest(t, "GET", server.URL+"/users/42", nil)
	if res.StatusCode != http.StatusNotFound {
		t.Errorf("expected the unprefixed path to miss, got %d", res.StatusCode)
	}
}

func TestSchematicQualifiesRouteNames(t *testing.T) {
	app := boreas.New()
	app.Include("/api/users", usersSchematic())

	url, err := app.URLFor("users.detail", boreas.Params{"id": 7})
	if err != nil {
		t.Fatal(err)
	}
	if url != "/api/users/7" {
		t.Errorf("expected %q, got %q", "/api/users/7", url)
	}

	if _, err := app.URLFor("detail", nil); err == nil {
		t.Error("the unqualified name must not resolve")
	}
}

func TestSchematicMiddlewareJoinsPipeline(t *testing.T) {
	schematic := boreas.NewSchematic("tagged")
	schematic.Rule("/inside", func(ctx *boreas.Context) (any, error) {
		return "ok", nil
	})
	schematic.UseMiddleware(func(ctx *boreas.Context, res *boreas.Response) (*boreas.Response, error) {
		res.Header.Set("X-Schematic", "tagged")
		return res, nil
	})

	app := boreas.New()
	app.Rule("/outside", func(ctx *boreas.Context) (any, error) {
		return "ok", nil
	})
	app.Include("/mounted", schematic)
	server := serveApp(t, app)

	res, _ := doRequest(t, "GET", server.URL+"/mounted/inside", nil)
	if res.Header.Get("X-Schematic") != "tagged" {
		t.Error("expected the schematic middleware on mounted routes")
	}

	// Mounted middleware joins the app's single pipeline, so it observes
	// every request, not only those under the prefix.
	res, _ = doRequest(t, "GET", server.URL+"/outside", nil)
	if res.Header.Get("X-Schematic") != "tagged" {
		t.Error("expected the schematic middleware on the shared pipeline")
	}
}

func TestSchematicDuplicateMountPanics(t *testing.T) {
	app := boreas.New()
	app.Include("/api/users", usersSchematic())

	defer func() {
		if recover() == nil {
			t.Error("expected mounting the same named schematic twice to panic")
		}
	}()
	app.Include("/api/users", usersSchematic())
}

func TestSchematicBadPrefixPanics(t *testing.T) {
	app := boreas.New()

	defer func() {
		if recover() == nil {
			t.Error("expected a prefix without a leading slash to panic")
		}
	}()
	app.Include("api", usersSchematic())
}
