// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Steamfront Contributors

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/steamfront/steamfront/internal/community"
	"github.com/steamfront/steamfront/internal/guard"
	"github.com/steamfront/steamfront/internal/session"
	"github.com/steamfront/steamfront/internal/snapshot"
	"github.com/steamfront/steamfront/internal/transport"
)

// workspace is a session bound to its transport, authenticator and saved
// snapshot.
type workspace struct {
	transport *transport.HTTPTransport
	session   *session.Session
	auth      *session.Authenticator
	doc       snapshot.Document
	restored  bool
}

func (a *app) newTransport() (*transport.HTTPTransport, error) {
	opts, err := a.cfg.HTTP.TransportOptions()
	if err != nil {
		return nil, err
	}
	opts = append(opts, transport.WithLogger(a.logger))
	return a.deps.TransportFactory(opts...)
}

// loadSnapshot returns the saved document, or an empty one when none exists.
func (a *app) loadSnapshot() (snapshot.Document, error) {
	if a.cfg.Snapshot.Path == "" {
		return snapshot.Document{}, nil
	}
	doc, err := snapshot.Load(a.cfg.Snapshot.Path, a.cfg.Snapshot.Passphrase)
	if errors.Is(err, fs.ErrNotExist) {
		return snapshot.Document{}, nil
	}
	return doc, err
}

func (a *app) saveSnapshot(w *workspace) error {
	if a.cfg.Snapshot.Path == "" {
		return nil
	}
	doc := snapshot.Capture(w.session, w.transport)
	if err := snapshot.Save(a.cfg.Snapshot.Path, a.cfg.Snapshot.Passphrase, doc); err != nil {
		return err
	}
	a.logger.Debug("snapshot saved", "path", a.cfg.Snapshot.Path, "cookies", len(doc.Cookies))
	return nil
}

// codeSource picks the guard code source: the mobile authenticator secret,
// a code given on the command line, a mail drop file, or a prompt.
func (a *app) codeSource(cmd *cobra.Command, tr transport.Transport) guard.CodeSource {
	if secret := a.cfg.Account.SharedSecret; secret != "" {
		aligner := guard.NewTimeAligner(guard.APITimeQuerier{Transport: tr}, guard.WithAlignerLogger(a.logger))
		return guard.NewTOTPSource(secret, aligner)
	}

	codeType := guard.CodeTypeDevice
	if email, err := cmd.Flags().GetBool("email-code"); err == nil && email {
		codeType = guard.CodeTypeEmail
	}
	if code, err := cmd.Flags().GetString("code"); err == nil && code != "" {
		return guard.StaticSource{Value: code, Type: codeType}
	}
	if path, err := cmd.Flags().GetString("email-code-file"); err == nil && path != "" {
		return guard.NewMailSource(fileInbox{path: path})
	}
	return promptSource{in: cmd.InOrStdin(), out: cmd.ErrOrStderr(), codeType: codeType}
}

// promptSource reads a guard code typed by the user.
type promptSource struct {
	in       io.Reader
	out      io.Writer
	codeType guard.CodeType
}

func (p promptSource) Code(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	_, _ = fmt.Fprint(p.out, "Steam Guard code: ")
	line, err := bufio.NewReader(p.in).ReadString('\n')
	code := strings.TrimSpace(line)
	if code == "" {
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return "", oops.Code("GUARD_CODE_MISSING").Wrap(err)
	}
	return code, nil
}

func (p promptSource) CodeType() guard.CodeType {
	return p.codeType
}

// fileInbox reads email guard codes that a mail filter appends to a file.
// The last non-empty line is the latest code.
type fileInbox struct {
	path string
}

func (f fileInbox) LatestCode(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", oops.Code("GUARD_INBOX_READ_FAILED").With("path", f.path).Wrap(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	return strings.TrimSpace(lines[len(lines)-1]), nil
}

// loginMode says how openWorkspace treats the saved session.
type loginMode int

const (
	// importCookies loads the saved cookies without checking them.
	importCookies loginMode = iota
	// restoreOrLogin verifies the saved cookies and logs in when they are
	// dead or missing.
	restoreOrLogin
	// freshLogin ignores the saved cookies and always logs in.
	freshLogin
)

// openWorkspace builds the session from configuration and the snapshot.
func (a *app) openWorkspace(cmd *cobra.Command, mode loginMode) (*workspace, error) {
	ctx := cmd.Context()
	tr, err := a.newTransport()
	if err != nil {
		return nil, err
	}
	doc, err := a.loadSnapshot()
	if err != nil {
		return nil, err
	}

	username := a.cfg.Account.Username
	if username == "" {
		username = doc.Username
	}
	opts := doc.SessionOptions()
	if doc.SteamID == 0 && a.cfg.Account.SteamID != 0 {
		opts = append(opts, session.WithSteamID(a.cfg.Account.SteamID))
	}
	s := session.New(username, tr, opts...)
	w := &workspace{transport: tr, session: s, doc: doc}
	w.auth = session.NewAuthenticator(s, a.cfg.Account.Password, a.codeSource(cmd, tr), session.WithLogger(a.logger))

	switch {
	case mode == importCookies:
		tr.Import(doc.Cookies)
		return w, nil
	case mode == restoreOrLogin && len(doc.Cookies) > 0:
		w.restored, err = w.auth.Restore(ctx, doc.Cookies)
	default:
		if err := a.cfg.RequireCredentials(); err != nil {
			return nil, err
		}
		err = w.auth.Login(ctx)
	}
	if err != nil {
		return nil, err
	}

	a.ready.Store(true)
	if !w.restored {
		if err := a.saveSnapshot(w); err != nil {
			return nil, err
		}
	}
	return w, nil
}

func (a *app) communityClient(w *workspace) *community.Client {
	return community.FromSession(w.session,
		community.WithConfig(a.cfg.Client.Community()),
		community.WithLogger(a.logger))
}
