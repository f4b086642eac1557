// Command session opens an editor session on a file of a multiplayer server
// and applies lines read from stdin as document edits.
//
// Besides plain text lines it understands:
//
//	:open <slug>   switch to another file
//	:dark, :light  change the editor theme
//	:drop <path>   drop a file from disk onto the editor
//	:quit          leave the session
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"log"
	"mime"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Vasu1712/scenyx-editor/internal/api/client"
	"github.com/Vasu1712/scenyx-editor/internal/app"
	"github.com/Vasu1712/scenyx-editor/internal/auth"
	"github.com/Vasu1712/scenyx-editor/internal/config"
	"github.com/Vasu1712/scenyx-editor/internal/editor"
	"github.com/Vasu1712/scenyx-editor/internal/logging"
	"github.com/Vasu1712/scenyx-editor/internal/metrics"
	"github.com/Vasu1712/scenyx-editor/internal/models"
	"github.com/Vasu1712/scenyx-editor/internal/multiplayer"
	"github.com/Vasu1712/scenyx-editor/internal/session"
)

// logSink reports theme changes of the editor.
type logSink struct{ log *zap.Logger }

func (s logSink) ApplyTheme(theme models.Theme) {
	s.log.Info("theme applied", zap.String("theme", string(theme)))
}

// apiBase maps the socket server URL to its HTTP base.
func apiBase(server string) string {
	u, err := url.Parse(server)
	if err != nil {
		return server
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	}
	return strings.TrimSuffix(u.String(), "/")
}

func main() {
	slug := flag.String("file", "", "slug of the file to open")
	name := flag.String("name", "anonymous", "name to register the session user under")
	userID := flag.String("user", "", "existing user id; a new user is registered when empty")
	temporary := flag.Bool("temporary", false, "open a temporary session")
	dark := flag.Bool("dark", false, "start the editor in dark mode")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := logging.Init(cfg.Logging()); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	logger := logging.L()
	defer logging.Sync()

	if *slug == "" {
		*slug = uuid.NewString()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	base := apiBase(cfg.MultiplayerServer)
	if *userID == "" {
		user, err := client.New(client.Config{BaseURL: base}).CreateUser(ctx, *name)
		if err != nil {
			logger.Fatal("failed to register user", zap.Error(err))
		}
		*userID = user.ID
		logger.Info("registered user", logging.User(user.ID))
	}

	clock := clockwork.NewRealClock()
	tokens := auth.NewTokenProvider(*userID, cfg.JWTSecret, cfg.TokenTTL, clock)
	api := client.New(client.Config{BaseURL: base, Tokens: tokens})
	m := metrics.New(prometheus.NewRegistry())

	handle := app.New(app.Options{
		Users:   api,
		Files:   api,
		Auth:    &models.Auth{UserID: *userID},
		Clock:   clock,
		Logger:  logger,
		Metrics: m,
	})
	ed := editor.New(*dark)

	sess := session.New(session.Config{
		App:               handle,
		Editor:            ed,
		Connector:         session.DialerConnector(multiplayer.NewDialer(logger, m)),
		Assets:            multiplayer.NewHTTPAssetStore(base),
		AssetHandler:      multiplayer.NewURLAssetHandler(),
		ThemeSink:         logSink{logger},
		Debug:             session.NewDebugRegistry(cfg.Debug),
		MultiplayerServer: cfg.MultiplayerServer,
		QuietPeriod:       cfg.PresenceQuietPeriod,
		ReadyDelay:        cfg.ReadyDelay,
		Clock:             clock,
		Logger:            logger,
		Metrics:           m,
	}, session.Props{FileSlug: *slug, Temporary: *temporary, User: tokens})

	if err := sess.Mount(ctx); err != nil {
		if session.IsInvariant(err) {
			logger.Fatal("session user cannot be resolved", logging.User(*userID), zap.Error(err))
		}
		logger.Fatal("failed to mount session", zap.Error(err))
	}
	defer sess.Unmount()

	logger.Info("session open", logging.File(sess.FileID().String()), zap.Bool("temporary", *temporary))

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	props := session.Props{FileSlug: *slug, Temporary: *temporary, User: tokens}
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if !run(ctx, line, sess, ed, &props, logger) {
				return
			}
		}
	}
}

// run executes one input line and reports whether to keep reading.
func run(ctx context.Context, line string, sess *session.Session, ed *editor.Editor, props *session.Props, logger *zap.Logger) bool {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	switch cmd {
	case "":
	case ":quit":
		return false
	case ":open":
		props.FileSlug = arg
		if err := sess.Update(*props); err != nil {
			logger.Fatal("failed to switch file", zap.Error(err))
		}
		logger.Info("switched file", logging.File(sess.FileID().String()))
	case ":dark":
		ed.SetDarkMode(true)
	case ":light":
		ed.SetDarkMode(false)
	case ":drop":
		data, err := os.ReadFile(arg)
		if err != nil {
			logger.Warn("cannot read dropped file", zap.Error(err))
			return true
		}
		err = ed.PutExternalContent(ctx, editor.ExternalContent{
			Kind: "files",
			Files: []models.DroppedFile{{
				Name: filepath.Base(arg),
				Type: mime.TypeByExtension(filepath.Ext(arg)),
				Data: data,
			}},
		})
		if err != nil {
			logger.Warn("drop failed", zap.Error(err))
		}
	default:
		record, _ := json.Marshal(map[string]string{"type": "text", "text": line})
		err := ed.Apply(editor.SourceUser, editor.Change{
			Scope:  editor.ScopeDocument,
			ID:     "shape:" + uuid.NewString(),
			Record: record,
		})
		if err != nil {
			logger.Warn("edit not synced", zap.Error(err), zap.String("status", string(sess.Status())))
		}
	}
	return true
}
