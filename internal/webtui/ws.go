package webtui

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/creack/pty"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// ErrTooManySessions is sent to the browser when MaxSessions terminals are already open.
var ErrTooManySessions = errors.New("too many open sessions")

// wsMsg is a control frame from the browser. Keystrokes travel as plain frames.
type wsMsg struct {
	Type string `json:"type"`
	Cols int    `json:"cols"`
	Rows int    `json:"rows"`
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  32 * 1024,
	WriteBufferSize: 32 * 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := strings.TrimSpace(r.Header.Get("Origin"))
		if origin == "" {
			return true
		}
		// Same-origin only.
		host := strings.TrimSpace(r.Host)
		return strings.HasSuffix(origin, "://"+host)
	},
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied.
		s.log.WithError(err).Debug("websocket upgrade")
		return
	}
	defer conn.Close()

	n := s.active.Add(1)
	defer s.active.Add(-1)
	if limit := s.cfg.MaxSessions; limit > 0 && int(n) > limit {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(ErrTooManySessions.Error()+"\r\n"))
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ptmx, cmd, cleanup, err := s.startPTYSession()
	if err != nil {
		s.log.WithError(err).Warn("start session")
		_ = conn.WriteMessage(websocket.TextMessage, []byte("failed to start session: "+err.Error()+"\r\n"))
		return
	}
	defer cleanup()
	log := s.log.WithFields(logrus.Fields{"pid": cmd.Process.Pid, "remote": r.RemoteAddr})
	log.Info("session started")

	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		errCh <- pumpPTYToWS(ctx, ptmx, conn)
	}()
	go func() {
		defer wg.Done()
		errCh <- pumpWSToPTY(ctx, conn, ptmx)
	}()

	// Either direction stopping ends the session.
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			log.WithError(err).Debug("session pump stopped")
		}
	}
	cancel()
	_ = cmd.Process.Kill()
	// Unblocks the reader goroutine.
	_ = conn.Close()
	_ = ptmx.Close()

	wg.Wait()
	log.Info("session ended")
}

func (s *Server) startPTYSession() (*os.File, *exec.Cmd, func(), error) {
	argv := s.cfg.Command
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = append(os.Environ(),
		"TERM=xterm-256color",
		"COLORTERM=truecolor",
	)

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: defaultCols, Rows: defaultRows})
	if err != nil {
		return nil, nil, nil, err
	}

	cleanup := func() {
		_ = ptmx.Close()
		_ = cmd.Process.Kill()
		_, _ = cmd.Process.Wait()
	}
	return ptmx, cmd, cleanup, nil
}

func pumpPTYToWS(ctx context.Context, ptmx *os.File, conn *websocket.Conn) error {
	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := ptmx.Read(buf)
		if n > 0 {
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if werr := conn.WriteMessage(websocket.BinaryMessage, buf[:n]); werr != nil {
				return werr
			}
		}
		if err != nil {
			// The pty reports EIO once the child has exited.
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) || isEIO(err) {
				return nil
			}
			return err
		}
	}
}

func pumpWSToPTY(ctx context.Context, conn *websocket.Conn, ptmx *os.File) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		if mt == websocket.TextMessage && len(data) > 0 && data[0] == '{' {
			var m wsMsg
			if jerr := json.Unmarshal(data, &m); jerr != nil {
				continue
			}
			if strings.EqualFold(strings.TrimSpace(m.Type), "resize") && m.Cols > 0 && m.Rows > 0 {
				_ = pty.Setsize(ptmx, &pty.Winsize{Cols: termDim(m.Cols), Rows: termDim(m.Rows)})
			}
			continue
		}
		if len(data) == 0 {
			continue
		}
		if _, err := ptmx.Write(data); err != nil {
			return err
		}
	}
}

// termDim converts a browser-reported size to a winsize field, saturating instead of
// wrapping.
func termDim(n int) uint16 {
	if n > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(n)
}

func isEIO(err error) bool {
	var pe *os.PathError
	return errors.As(err, &pe) && strings.Contains(pe.Err.Error(), "input/output error")
}
