package process

import (
	"fmt"
	"io"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/searchktools/hive/core/router"
)

// Manifest is the serializable part of the tables, written to every worker
// once. Value tables (directories, headers) are authoritative; handler
// entries carry the metadata a worker checks its own registrations against.
type Manifest struct {
	WorkerID        string
	Workers         int
	EventLoop       string
	Directories     []router.Directory
	RequestHeaders  []router.Header
	ResponseHeaders []router.Header
	Routes          []RouteInfo
	Middlewares     []MiddlewareInfo
	Startup         string
	Shutdown        string
	WebSockets      []WebSocketInfo
}

// RouteInfo describes one route entry
type RouteInfo struct {
	Method  string
	Path    string
	IsConst bool
	IsAsync bool
	Handler string
}

// MiddlewareInfo describes one middleware entry
type MiddlewareInfo struct {
	Phase   string
	Path    string
	IsAsync bool
	Handler string
}

// WebSocketInfo describes one websocket endpoint
type WebSocketInfo struct {
	Endpoint string
	Connect  string
	Message  string
	Close    string
}

// NewManifest describes t
func NewManifest(t Tables, workers int, eventLoop string) Manifest {
	m := Manifest{
		Workers:         workers,
		EventLoop:       eventLoop,
		Directories:     t.Directories,
		RequestHeaders:  t.RequestHeaders,
		ResponseHeaders: t.ResponseHeaders,
	}
	for _, r := range t.Routes {
		m.Routes = append(m.Routes, RouteInfo{
			Method:  string(r.Method),
			Path:    r.Path,
			IsConst: r.IsConst,
			IsAsync: r.Handler.IsAsync,
			Handler: r.Handler.Name,
		})
	}
	for _, mw := range t.Middlewares {
		m.Middlewares = append(m.Middlewares, MiddlewareInfo{
			Phase:   string(mw.Phase),
			Path:    mw.Path,
			IsAsync: mw.Handler.IsAsync,
			Handler: mw.Handler.Name,
		})
	}
	if t.Startup != nil {
		m.Startup = t.Startup.Name
	}
	if t.Shutdown != nil {
		m.Shutdown = t.Shutdown.Name
	}
	for _, ep := range t.WebSocketEndpoints() {
		e := t.WebSockets[ep]
		m.WebSockets = append(m.WebSockets, WebSocketInfo{
			Endpoint: ep,
			Connect:  e.Connect.Name,
			Message:  e.Message.Name,
			Close:    e.Close.Name,
		})
	}
	return m
}

// Verify checks that local, rebuilt by the worker, registers the same
// handlers in the same order as the manifest
func (m Manifest) Verify(local Tables) error {
	want := NewManifest(local, m.Workers, m.EventLoop)

	if len(want.Routes) != len(m.Routes) {
		return &ReplayError{Table: "routes", Index: -1, Err: fmt.Errorf("%w: %d local, %d in manifest", ErrManifestMismatch, len(want.Routes), len(m.Routes))}
	}
	for i := range m.Routes {
		if want.Routes[i] != m.Routes[i] {
			return &ReplayError{Table: "routes", Index: i, Err: fmt.Errorf("%w: %+v != %+v", ErrManifestMismatch, want.Routes[i], m.Routes[i])}
		}
	}

	if len(want.Middlewares) != len(m.Middlewares) {
		return &ReplayError{Table: "middlewares", Index: -1, Err: fmt.Errorf("%w: %d local, %d in manifest", ErrManifestMismatch, len(want.Middlewares), len(m.Middlewares))}
	}
	for i := range m.Middlewares {
		if want.Middlewares[i] != m.Middlewares[i] {
			return &ReplayError{Table: "middlewares", Index: i, Err: fmt.Errorf("%w: %+v != %+v", ErrManifestMismatch, want.Middlewares[i], m.Middlewares[i])}
		}
	}

	if want.Startup != m.Startup {
		return &ReplayError{Table: "startup", Index: -1, Err: fmt.Errorf("%w: %q != %q", ErrManifestMismatch, want.Startup, m.Startup)}
	}
	if want.Shutdown != m.Shutdown {
		return &ReplayError{Table: "shutdown", Index: -1, Err: fmt.Errorf("%w: %q != %q", ErrManifestMismatch, want.Shutdown, m.Shutdown)}
	}

	if len(want.WebSockets) != len(m.WebSockets) {
		return &ReplayError{Table: "websockets", Index: -1, Err: fmt.Errorf("%w: %d local, %d in manifest", ErrManifestMismatch, len(want.WebSockets), len(m.WebSockets))}
	}
	for i := range m.WebSockets {
		if want.WebSockets[i] != m.WebSockets[i] {
			return &ReplayError{Table: "websockets", Index: i, Err: fmt.Errorf("%w: %+v != %+v", ErrManifestMismatch, want.WebSockets[i], m.WebSockets[i])}
		}
	}

	return nil
}

// Apply returns local with the value tables replaced by the manifest's
func (m Manifest) Apply(local Tables) Tables {
	out := local.Clone()
	out.Directories = m.Directories
	out.RequestHeaders = m.RequestHeaders
	out.ResponseHeaders = m.ResponseHeaders
	return out
}

// Marshal encodes the manifest as a protobuf Struct
func (m Manifest) Marshal() ([]byte, error) {
	s, err := structpb.NewStruct(m.toMap())
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return proto.Marshal(s)
}

// WriteTo writes the encoded manifest to w
func (m Manifest) WriteTo(w io.Writer) (int64, error) {
	b, err := m.Marshal()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(b)
	return int64(n), err
}

// UnmarshalManifest decodes a manifest written by Marshal
func UnmarshalManifest(b []byte) (Manifest, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(b, &s); err != nil {
		return Manifest{}, fmt.Errorf("decode manifest: %w", err)
	}
	return manifestFromMap(s.AsMap()), nil
}

// ReadManifest reads and decodes a manifest from r until EOF
func ReadManifest(r io.Reader) (Manifest, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	return UnmarshalManifest(b)
}

func (m Manifest) toMap() map[string]any {
	dirs := make([]any, 0, len(m.Directories))
	for _, d := range m.Directories {
		dirs = append(dirs, map[string]any{
			"route":        d.Route,
			"root":         d.Root,
			"index_file":   d.IndexFile,
			"show_listing": d.ShowListing,
		})
	}

	routes := make([]any, 0, len(m.Routes))
	for _, r := range m.Routes {
		routes = append(routes, map[string]any{
			"method":   r.Method,
			"path":     r.Path,
			"is_const": r.IsConst,
			"is_async": r.IsAsync,
			"handler":  r.Handler,
		})
	}

	mws := make([]any, 0, len(m.Middlewares))
	for _, mw := range m.Middlewares {
		mws = append(mws, map[string]any{
			"phase":    mw.Phase,
			"path":     mw.Path,
			"is_async": mw.IsAsync,
			"handler":  mw.Handler,
		})
	}

	wss := make([]any, 0, len(m.WebSockets))
	for _, ws := range m.WebSockets {
		wss = append(wss, map[string]any{
			"endpoint": ws.Endpoint,
			"connect":  ws.Connect,
			"message":  ws.Message,
			"close":    ws.Close,
		})
	}

	return map[string]any{
		"worker_id":        m.WorkerID,
		"workers":          m.Workers,
		"event_loop":       m.EventLoop,
		"directories":      dirs,
		"request_headers":  headersToList(m.RequestHeaders),
		"response_headers": headersToList(m.ResponseHeaders),
		"routes":           routes,
		"middlewares":      mws,
		"startup":          m.Startup,
		"shutdown":         m.Shutdown,
		"websockets":       wss,
	}
}

func headersToList(hs []router.Header) []any {
	out := make([]any, 0, len(hs))
	for _, h := range hs {
		out = append(out, map[string]any{"name": h.Name, "value": h.Value})
	}
	return out
}

func manifestFromMap(v map[string]any) Manifest {
	m := Manifest{
		WorkerID:  str(v["worker_id"]),
		Workers:   int(num(v["workers"])),
		EventLoop: str(v["event_loop"]),
		Startup:   str(v["startup"]),
		Shutdown:  str(v["shutdown"]),
	}

	for _, item := range objects(v["directories"]) {
		m.Directories = append(m.Directories, router.Directory{
			Route:       str(item["route"]),
			Root:        str(item["root"]),
			IndexFile:   str(item["index_file"]),
			ShowListing: boolean(item["show_listing"]),
		})
	}
	for _, item := range objects(v["request_headers"]) {
		m.RequestHeaders = append(m.RequestHeaders, router.Header{Name: str(item["name"]), Value: str(item["value"])})
	}
	for _, item := range objects(v["response_headers"]) {
		m.ResponseHeaders = append(m.ResponseHeaders, router.Header{Name: str(item["name"]), Value: str(item["value"])})
	}
	for _, item := range objects(v["routes"]) {
		m.Routes = append(m.Routes, RouteInfo{
			Method:  str(item["method"]),
			Path:    str(item["path"]),
			IsConst: boolean(item["is_const"]),
			IsAsync: boolean(item["is_async"]),
			Handler: str(item["handler"]),
		})
	}
	for _, item := range objects(v["middlewares"]) {
		m.Middlewares = append(m.Middlewares, MiddlewareInfo{
			Phase:   str(item["phase"]),
			Path:    str(item["path"]),
			IsAsync: boolean(item["is_async"]),
			Handler: str(item["handler"]),
		})
	}
	for _, item := range objects(v["websockets"]) {
		m.WebSockets = append(m.WebSockets, WebSocketInfo{
			Endpoint: str(item["endpoint"]),
			Connect:  str(item["connect"]),
			Message:  str(item["message"]),
			Close:    str(item["close"]),
		})
	}
	return m
}

func objects(v any) []map[string]any {
	list, _ := v.([]any)
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if obj, ok := item.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func num(v any) float64 {
	f, _ := v.(float64)
	return f
}

func boolean(v any) bool {
	b, _ := v.(bool)
	return b
}
