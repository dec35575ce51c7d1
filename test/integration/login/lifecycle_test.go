// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Steamfront Contributors

//go:build integration

package login_test

import (
	"context"
	"net/http"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/steamfront/steamfront/internal/community"
	"github.com/steamfront/steamfront/internal/guard"
	"github.com/steamfront/steamfront/internal/session"
	"github.com/steamfront/steamfront/internal/snapshot"
	"github.com/steamfront/steamfront/internal/steamerr"
	"github.com/steamfront/steamfront/internal/steamtest"
)

const (
	username = "gaben"
	password = "hunter2"
	steamID  = "76561197960287930"
	owner    = uint64(76561197960287930)
)

var _ = Describe("Session lifecycle", func() {
	var (
		ctx    context.Context
		server *steamtest.Server
		login  *steamtest.Login
	)

	BeforeEach(func() {
		ctx = context.Background()
		server = steamtest.New(GinkgoTB())
		login = &steamtest.Login{Username: username, Password: password, SteamID: steamID, GuardCode: "R87JJ"}
		server.InstallLogin(login)
	})

	newAuthenticator := func(s *session.Session) *session.Authenticator {
		return session.NewAuthenticator(s, password, guard.StaticSource{Value: "R87JJ"})
	}

	Describe("logging in", func() {
		It("propagates the session to every domain", func() {
			tr := server.Transport()
			s := session.New(username, tr)

			Expect(newAuthenticator(s).Login(ctx)).To(Succeed())
			Expect(s.State()).To(Equal(session.StateLoggedIn))
			Expect(login.Transfers()).To(Equal(3))
			for _, domain := range s.Endpoints().Domains() {
				token, ok := s.AccessToken(domain)
				Expect(ok).To(BeTrue(), domain)
				Expect(token).NotTo(BeEmpty())
			}
		})

		It("fails as a whole when one domain withholds its cookie", func() {
			login.MissingCookieHosts = []string{steamtest.StoreHost}
			s := session.New(username, server.Transport())

			err := newAuthenticator(s).Login(ctx)
			Expect(err).To(HaveOccurred())
			Expect(steamerr.Tag(err)).To(Equal(steamerr.TagMissingCookie))
			Expect(s.State()).To(Equal(session.StateFailed))
			Expect(login.Transfers()).To(Equal(3))
		})
	})

	Describe("restoring from a snapshot", func() {
		var path string

		BeforeEach(func() {
			path = filepath.Join(GinkgoT().TempDir(), "session.snap")
			tr := server.Transport()
			s := session.New(username, tr)
			Expect(newAuthenticator(s).Login(ctx)).To(Succeed())
			Expect(snapshot.Save(path, "pw", snapshot.Capture(s, tr))).To(Succeed())
		})

		It("reuses live cookies without logging in again", func() {
			doc, err := snapshot.Load(path, "pw")
			Expect(err).NotTo(HaveOccurred())

			tr := server.Transport()
			s := session.New(doc.Username, tr, doc.SessionOptions()...)
			alive, err := newAuthenticator(s).Restore(ctx, doc.Cookies)
			Expect(err).NotTo(HaveOccurred())
			Expect(alive).To(BeTrue())
			Expect(s.IsLoggedIn()).To(BeTrue())
			Expect(s.SteamID()).To(Equal(owner))
			Expect(server.RequestsTo(steamtest.APIHost, "/IAuthenticationService/BeginAuthSessionViaCredentials/v1")).To(HaveLen(1))
			Expect(s.IsAccessTokenExpired(time.Now())).To(BeFalse())
		})

		It("reads trade offers with the restored access token", func() {
			server.Handle(steamtest.APIHost, http.MethodGet, "/IEconService/GetTradeOffers/v1", func(w http.ResponseWriter, _ *http.Request) {
				steamtest.WriteJSON(w, http.StatusOK, map[string]any{"response": map[string]any{
					"trade_offers_sent": []map[string]any{{"tradeofferid": "5", "trade_offer_state": 3}},
					"next_cursor":       0,
				}})
			})
			doc, err := snapshot.Load(path, "pw")
			Expect(err).NotTo(HaveOccurred())
			tr := server.Transport()
			s := session.New(doc.Username, tr, doc.SessionOptions()...)
			_, err = newAuthenticator(s).Restore(ctx, doc.Cookies)
			Expect(err).NotTo(HaveOccurred())

			sent, _, err := community.FromSession(s).TradeOffers(ctx, community.TradeOffersOptions{Sent: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(sent).To(HaveLen(1))
			Expect(sent[0].State).To(Equal(community.TradeOfferAccepted))

			reqs := server.RequestsTo(steamtest.APIHost, "/IEconService/GetTradeOffers/v1")
			Expect(reqs).To(HaveLen(1))
			Expect(reqs[0].Query.Get("access_token")).To(Equal(login.AccessToken(steamtest.CommunityHost)))
		})
	})

	Describe("reading the catalog", func() {
		It("joins descriptions across inventory pages", func() {
			inventoryPath := "/inventory/" + steamID + "/730/2"
			server.Handle(steamtest.CommunityHost, http.MethodGet, inventoryPath, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Query().Get("start_assetid") == "" {
					steamtest.WriteJSON(w, http.StatusOK, map[string]any{
						"success":      1,
						"assets":       []map[string]any{{"appid": 730, "contextid": "2", "assetid": "111", "classid": "1", "instanceid": "0"}},
						"descriptions": []map[string]any{{"appid": 730, "classid": "1", "instanceid": "0", "market_hash_name": "Clutch Case"}},
						"more_items":   1,
						"last_assetid": "111",
					})
					return
				}
				steamtest.WriteJSON(w, http.StatusOK, map[string]any{
					"success": 1,
					"assets":  []map[string]any{{"appid": 730, "contextid": "2", "assetid": "222", "classid": "1", "instanceid": "0"}},
				})
			})
			tr := server.Transport()
			s := session.New(username, tr)
			Expect(newAuthenticator(s).Login(ctx)).To(Succeed())

			entries, err := community.FromSession(s).Inventory(ctx, owner, community.CS2, community.InventoryOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(2))
			Expect(entries[1].Description).To(BeIdenticalTo(entries[0].Description))

			reqs := server.RequestsTo(steamtest.CommunityHost, inventoryPath)
			Expect(reqs).To(HaveLen(2))
			Expect(reqs[1].Query.Get("start_assetid")).To(Equal("111"))
			Expect(reqs[1].Cookies).To(HaveKey("steamLoginSecure"))
		})
	})

	Describe("logging out", func() {
		It("clears the secure cookie and leaves the session idle", func() {
			tr := server.Transport()
			s := session.New(username, tr)
			auth := newAuthenticator(s)
			Expect(auth.Login(ctx)).To(Succeed())

			Expect(auth.Logout(ctx)).To(Succeed())
			Expect(s.State()).To(Equal(session.StateIdle))
			Expect(s.IsLoggedIn()).To(BeFalse())
			_, ok := s.CommunityAccessToken()
			Expect(ok).To(BeFalse())
		})
	})
})
