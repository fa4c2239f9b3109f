package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/indigo-web/connector/http"
	"github.com/indigo-web/connector/http/method"
	"github.com/indigo-web/connector/http/mime"
	"github.com/indigo-web/connector/http/status"
)

type requestInfo struct {
	Method   string            `json:"method"`
	URI      string            `json:"uri"`
	Query    string            `json:"query,omitempty"`
	Protocol string            `json:"protocol"`
	Server   string            `json:"server"`
	Port     int               `json:"port"`
	Remote   string            `json:"remote"`
	Scheme   string            `json:"scheme"`
	Headers  map[string]string `json:"headers"`
	TLS      map[string]any    `json:"tls,omitempty"`
}

// demo is the adapter the daemon serves:
//
//	/          greets
//	/echo      responds with the request body
//	/info      describes the request in JSON
//	/files/... transmits files from the root directory
type demo struct {
	root string
}

func (d demo) Service(req *http.Request, resp *http.Response) error {
	switch path := req.URI; {
	case path == "/":
		return resp.ContentType(mime.HTML).String("<h1>Hello, world!</h1>")
	case path == "/echo":
		body, err := req.Body.Bytes()
		if err != nil {
			return err
		}

		if len(req.ContentType) > 0 {
			resp.SetHeader("Content-Type", req.ContentType)
		}

		return resp.Bytes(body)
	case path == "/info":
		return resp.JSON(describe(req))
	case strings.HasPrefix(path, "/files/"):
		return d.file(req, resp, strings.TrimPrefix(path, "/files/"))
	default:
		resp.Code(status.NotFound)
		return nil
	}
}

func (demo) Event(*http.Request, *http.Response, bool) bool {
	return true
}

func (d demo) file(req *http.Request, resp *http.Response, name string) error {
	if len(d.root) == 0 {
		resp.Code(status.NotFound)
		return nil
	}

	if req.Method != method.GET && req.Method != method.HEAD {
		resp.Code(status.MethodNotAllowed).SetHeader("Allow", "GET, HEAD")
		return nil
	}

	// Clean on the rooted path never climbs above the root
	path := filepath.Join(d.root, filepath.FromSlash(filepath.Clean("/"+name)))
	stat, err := os.Stat(path)
	if err != nil || stat.IsDir() {
		resp.Code(status.NotFound)
		return nil
	}

	if req.Env.SendfileSupported {
		return resp.Sendfile(path, 0, -1)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return resp.ContentType(mime.WithCharset(mime.ByFilename(path))).Bytes(data)
}

func describe(req *http.Request) requestInfo {
	info := requestInfo{
		Method:   req.MethodToken,
		URI:      req.URI,
		Query:    req.Query,
		Protocol: req.Protocol,
		Server:   req.ServerName,
		Port:     req.ServerPort,
		Remote:   req.RemoteAddr(),
		Scheme:   req.Scheme,
		Headers:  make(map[string]string, req.Headers.Len()),
	}

	for key, value := range req.Headers.Iter() {
		info.Headers[key] = value
	}

	if req.Env.Encryption != 0 {
		info.TLS = map[string]any{
			"cipher":   req.Attribute(http.AttrCipherSuite),
			"protocol": req.Attribute(http.AttrProtocolVersion),
		}
	}

	return info
}
