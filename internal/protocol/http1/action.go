package http1

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/indigo-web/connector/http"
	"github.com/indigo-web/connector/http/action"
	"github.com/indigo-web/connector/transport"
)

var (
	errBroken             = errors.New("connection is broken")
	errFinished           = errors.New("response is already finished")
	errBadParam           = errors.New("unexpected action parameter")
	errSendfileNotAllowed = errors.New("sendfile is disabled")
)

// peerCache keeps the addresses of both ends of the connection, as they don't change
// for its lifetime.
type peerCache struct {
	remote    http.Peer
	local     http.Peer
	hasRemote bool
	hasHost   bool
	hasLocal  bool
}

// Action implements http.ActionHook.
func (p *Processor) Action(code action.Code, param any) error {
	switch code {
	case action.Commit:
		return p.commit()
	case action.Ack:
		return p.ack()
	case action.Close, action.PostRequest:
		return p.finish()
	case action.Flush:
		return p.flush()
	case action.Reset:
		if p.response.Expose().Committed {
			return http.ErrCommitted
		}

		p.out.Reset()
		if p.sendfile != nil {
			_ = p.sendfile.Close()
			p.sendfile = nil
		}

		return nil
	case action.RemoteAddr, action.RemotePort:
		return withPeer(param, func(peer *http.Peer) {
			remote := p.remote()
			peer.Addr, peer.Port = remote.Addr, remote.Port
		})
	case action.RemoteHost:
		return withPeer(param, func(peer *http.Peer) {
			peer.Host = p.remoteHost()
		})
	case action.LocalAddr, action.LocalPort:
		return withPeer(param, func(peer *http.Peer) {
			local := p.local()
			peer.Addr, peer.Port = local.Addr, local.Port
		})
	case action.SSLAttributes, action.SSLCertificate:
		attrs, ok := param.(map[string]any)
		if !ok {
			return errBadParam
		}

		p.tlsAttributes(attrs, code == action.SSLCertificate)
		return nil
	case action.ReplayBody:
		return p.input.save()
	case action.Sendfile:
		job, ok := param.(*http.SendfileJob)
		if !ok {
			return errBadParam
		}

		return p.scheduleSendfile(job)
	default:
		return fmt.Errorf("unsupported action: %s", code)
	}
}

func withPeer(param any, fn func(peer *http.Peer)) error {
	peer, ok := param.(*http.Peer)
	if !ok {
		return errBadParam
	}

	fn(peer)
	return nil
}

func (p *Processor) remote() http.Peer {
	if !p.peers.hasRemote {
		p.peers.hasRemote = true
		p.peers.remote = peerOf(p.sock.RemoteAddr())
	}

	return p.peers.remote
}

// remoteHost resolves the host name of the client via reverse DNS, if enabled.
func (p *Processor) remoteHost() string {
	if p.peers.hasHost {
		return p.peers.remote.Host
	}

	p.peers.hasHost = true
	addr := p.remote().Addr
	p.peers.remote.Host = addr

	if p.cfg.NET.EnableLookups && net.ParseIP(addr) != nil {
		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.NET.SocketTimeout)
		defer cancel()

		names, err := net.DefaultResolver.LookupAddr(ctx, addr)
		if err == nil && len(names) > 0 {
			p.peers.remote.Host = strings.TrimSuffix(names[0], ".")
		}
	}

	return p.peers.remote.Host
}

func (p *Processor) local() http.Peer {
	if !p.peers.hasLocal {
		p.peers.hasLocal = true
		p.peers.local = peerOf(p.sock.LocalAddr())
	}

	return p.peers.local
}

func peerOf(addr net.Addr) http.Peer {
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return http.Peer{Addr: tcp.IP.String(), Port: tcp.Port}
	}

	host, rawPort, err := net.SplitHostPort(addr.String())
	if err != nil {
		return http.Peer{Addr: addr.String()}
	}

	port, _ := strconv.Atoi(rawPort)
	return http.Peer{Addr: host, Port: port}
}

func (p *Processor) tlsAttributes(attrs map[string]any, certs bool) {
	state, ok := p.sock.TLS()
	if !ok {
		return
	}

	if certs {
		attrs[http.AttrPeerCertificates] = state.PeerCertificates
		return
	}

	attrs[http.AttrCipherSuite] = tls.CipherSuiteName(state.CipherSuite)
	attrs[http.AttrProtocolVersion] = tls.VersionName(state.Version)
	attrs[http.AttrServerName] = state.ServerName
	attrs[http.AttrNegotiated] = state.NegotiatedProtocol
	attrs[http.AttrSessionResumed] = state.DidResume
}

// scheduleSendfile opens the file and validates the region. The transmission itself
// happens after the response headers are flushed.
func (p *Processor) scheduleSendfile(job *http.SendfileJob) error {
	if !p.cfg.Workers.UseSendfile {
		return errSendfileNotAllowed
	}

	file, err := os.Open(job.Path)
	if err != nil {
		return err
	}

	stat, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return err
	}

	if stat.IsDir() {
		_ = file.Close()
		return fmt.Errorf("sendfile: %s is a directory", job.Path)
	}

	size, length := stat.Size(), job.Length
	if length < 0 {
		length = size - job.Offset
	}

	if job.Offset < 0 || job.Offset > size || length < 0 || job.Offset+length > size {
		_ = file.Close()
		return fmt.Errorf("sendfile: region [%d, %d) is out of %s", job.Offset, job.Offset+length, job.Path)
	}

	if p.sendfile != nil {
		_ = p.sendfile.Close()
	}

	p.sendfile = &transport.SendfileJob{
		File:   file,
		Offset: job.Offset,
		Length: length,
	}
	job.Length = length
	p.response.ContentLength(length)

	return nil
}
