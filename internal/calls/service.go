package calls

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"webconferencing/internal/audit"
	"webconferencing/internal/auth"
	"webconferencing/internal/locks"
	"webconferencing/internal/metrics"
	"webconferencing/internal/presence"

	"github.com/samber/lo"
)

// Deps are the collaborators of an Engine. Store, Directory and Listeners
// are required.
type Deps struct {
	Store     Store
	Directory Directory
	IMs       IMResolver
	Listeners *presence.Registry

	// Notifier defaults to a synchronous dispatcher over Listeners.
	Notifier Notifier
	// Locker defaults to an in-process keyed mutex.
	Locker locks.Locker
	Events EventLog

	Log   *slog.Logger
	Clock func() time.Time
}

// Engine runs the call state machine.
//
// Invariants:
//   - Every operation holds the locker key of its call (and of the group
//     owner for AddCall) until it returns.
//   - All rows touched by one transition are written in one store transaction.
//   - Listeners are notified only after the transaction commits.
//
// The calling user is read from ctx (auth.UserID); no identity means the
// operation was started by the system.
type Engine struct {
	store     Store
	dir       Directory
	ims       IMResolver
	listeners *presence.Registry
	notifier  Notifier
	locker    locks.Locker
	events    EventLog
	log       *slog.Logger
	clock     func() time.Time
}

func NewEngine(d Deps) (*Engine, error) {
	if d.Store == nil || d.Directory == nil || d.Listeners == nil {
		return nil, errors.New("calls: store, directory and listeners are required")
	}
	e := &Engine{
		store:     d.Store,
		dir:       d.Directory,
		ims:       d.IMs,
		listeners: d.Listeners,
		notifier:  d.Notifier,
		locker:    d.Locker,
		events:    d.Events,
		log:       d.Log,
		clock:     d.Clock,
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	if e.notifier == nil {
		e.notifier = presence.NewDispatcher(d.Listeners, 0, 0, e.log)
	}
	if e.locker == nil {
		e.locker = locks.NewLocal()
	}
	if e.clock == nil {
		e.clock = time.Now
	}
	return e, nil
}

// AddCall creates a call in the started state.
func (e *Engine) AddCall(ctx context.Context, req NewCall) (*Call, error) {
	defer observe("add")()

	switch {
	case !ValidID(req.ID):
		return nil, argumentErr("wrong call id")
	case !ValidID(req.OwnerID):
		return nil, argumentErr("wrong owner id")
	case !ValidShortToken(req.OwnerType):
		return nil, argumentErr("wrong owner type")
	case !ValidShortToken(req.ProviderType):
		return nil, argumentErr("wrong provider type")
	case !ValidText(req.Title):
		return nil, argumentErr("wrong title")
	}
	ownerType, ok := ParseOwnerType(req.OwnerType)
	if !ok {
		return nil, argumentErr("wrong call owner type")
	}
	partIDs, err := uniqueParticipants(req.Participants)
	if err != nil {
		return nil, err
	}
	initiator := initiatorFrom(ctx)

	keys := []string{callKey(req.ID)}
	if ownerType.IsGroup() {
		keys = []string{ownerKey(req.OwnerID), callKey(req.ID)}
	}
	unlock, err := e.lock(ctx, keys...)
	if err != nil {
		return nil, err
	}
	defer unlock()

	owner, err := e.resolveOwner(ctx, req.OwnerID, ownerType, req.Title)
	if err != nil {
		return nil, err
	}
	parts, err := e.resolveParticipants(ctx, partIDs, req.ProviderType)
	if err != nil {
		return nil, err
	}

	c := &Call{
		ID:           req.ID,
		Title:        req.Title,
		Owner:        owner,
		ProviderType: req.ProviderType,
		State:        CallStateStarted,
		LastDate:     e.clock().UTC(),
		Group:        ownerType.IsGroup(),
		Participants: parts,
	}
	if c.Group {
		c.Owner.setGroupCallID(c.ID)
	}

	if err := e.persistNew(ctx, c, initiator); err != nil {
		return nil, err
	}

	metrics.RecordTransition("add", string(c.State))
	e.log.Debug("call added", "call_id", c.ID, "owner_id", c.Owner.ID, "owner_type", c.Owner.Type, "participants", len(c.Participants))
	e.notifier.Dispatch(startedRecipients(c, initiator), stateEvent(c, CallStateStarted))
	return c, nil
}

type reconciledCall struct {
	callID  string
	event   audit.EventType
	message string
}

// persistNew runs conflict detection and the insert in one transaction.
// A duplicate group owner is retried once after superseding the record that
// won the race; a duplicate call id is reported as a conflict after
// re-reading the winner.
func (e *Engine) persistNew(ctx context.Context, c *Call, initiator string) error {
	var reconciled []reconciledCall
	create := func(ctx context.Context, repo Repository) error {
		reconciled = reconciled[:0]
		if c.Group {
			r, err := supersedeGroupCall(ctx, repo, c)
			if err != nil {
				return err
			}
			if r != nil {
				reconciled = append(reconciled, *r)
			}
		}
		r, err := e.replaceStale(ctx, repo, c)
		if err != nil {
			return err
		}
		if r != nil {
			reconciled = append(reconciled, *r)
		}
		return insertCall(ctx, repo, c)
	}

	for attempt := 0; ; attempt++ {
		err := e.store.WithTx(ctx, create)
		if err == nil {
			break
		}
		key, dup := duplicateKey(err)
		switch {
		case !dup:
			return storageErr("saving call", err)
		case key == KeyGroupOwner && attempt == 0:
			e.log.Warn("group call created concurrently, superseding it", "call_id", c.ID, "owner_id", c.Owner.ID)
			continue
		case key == KeyGroupOwner:
			return conflictErr("owner", "call owner already has a call")
		case key == KeyCallID:
			return e.raceConflict(ctx, c)
		default:
			return storageErr("saving call", err)
		}
	}

	for _, r := range reconciled {
		e.log.Warn(r.message, "call_id", r.callID, "new_call_id", c.ID, "owner_id", c.Owner.ID)
		metrics.RecordReconciled(string(r.event), 1)
		e.appendEvent(ctx, audit.Event{Type: r.event, CallID: r.callID, ActorUserID: initiator, Message: r.message})
	}
	return nil
}

func supersedeGroupCall(ctx context.Context, repo Repository, c *Call) (*reconciledCall, error) {
	existing, ok, err := repo.FindByGroupOwner(ctx, c.Owner.ID)
	if err != nil || !ok || existing.ID == c.ID {
		return nil, err
	}
	if _, err := repo.DeleteCall(ctx, existing.ID); err != nil {
		return nil, err
	}
	return &reconciledCall{callID: existing.ID, event: audit.EventCallSuperseded, message: "deleted superseded group call"}, nil
}

// replaceStale applies the same-id rule: a group call is never re-added, and
// a peer-to-peer call is rejected only while a party is still connected.
func (e *Engine) replaceStale(ctx context.Context, repo Repository, c *Call) (*reconciledCall, error) {
	existing, ok, err := repo.Find(ctx, c.ID)
	if err != nil || !ok {
		return nil, err
	}
	if c.Group {
		return nil, conflictErr("created", "call already created")
	}

	msg := "deleted outdated call"
	if existing.State.OrStopped() == CallStateStarted {
		active, err := e.hasActiveClient(ctx, repo, c.ID)
		if err != nil {
			return nil, err
		}
		if active {
			return nil, conflictErr("started", "call already started")
		}
		msg = "deleted not active call"
	}
	if _, err := repo.DeleteCall(ctx, existing.ID); err != nil {
		return nil, err
	}
	return &reconciledCall{callID: existing.ID, event: audit.EventCallStaleDeleted, message: msg}, nil
}

// raceConflict explains a duplicate call id reported by the store.
func (e *Engine) raceConflict(ctx context.Context, c *Call) error {
	existing, ok, err := e.store.Find(ctx, c.ID)
	if err != nil {
		return storageErr("reading call", err)
	}
	if !ok {
		return conflictErr("race", "call id already found")
	}
	if !c.Group && existing.State.OrStopped() == CallStateStarted {
		active, err := e.hasActiveClient(ctx, e.store, c.ID)
		if err != nil {
			return storageErr("reading participants", err)
		}
		if active {
			return conflictErr("race", "call already started and running")
		}
		return conflictErr("race", "call already started")
	}
	return conflictErr("race", "call already created")
}

func (e *Engine) hasActiveClient(ctx context.Context, r Reader, callID string) (bool, error) {
	parts, err := r.FindParticipants(ctx, callID)
	if err != nil {
		return false, err
	}
	return lo.ContainsBy(parts, func(p ParticipantRecord) bool {
		return p.ClientID != "" && e.listeners.HasClient(p.ID, p.ClientID)
	}), nil
}

func insertCall(ctx context.Context, repo Repository, c *Call) error {
	if err := repo.CreateCall(ctx, toCallRecord(c)); err != nil {
		return err
	}
	for _, p := range c.Participants {
		if err := repo.CreateParticipant(ctx, toParticipantRecord(c.ID, p)); err != nil {
			return err
		}
	}
	return nil
}

// StartCall re-activates a call for the calling user's client. Unknown ids
// return nil.
func (e *Engine) StartCall(ctx context.Context, id, clientID string) (*Call, error) {
	defer observe("start")()
	if !ValidID(id) {
		return nil, argumentErr("wrong call id")
	}

	unlock, err := e.lock(ctx, callKey(id))
	if err != nil {
		return nil, err
	}
	defer unlock()

	c, err := e.load(ctx, e.store, id)
	if err != nil || c == nil {
		return nil, err
	}
	return e.start(ctx, c, initiatorFrom(ctx), clientID)
}

func (e *Engine) start(ctx context.Context, c *Call, userID, clientID string) (*Call, error) {
	c.State = CallStateStarted
	c.LastDate = e.clock().UTC()
	for i := range c.Participants {
		p := &c.Participants[i]
		if p.IsUser() && p.ID == userID {
			p.State, p.ClientID = ParticipantJoined, clientID
		} else {
			p.State, p.ClientID = ParticipantLeaved, ""
		}
	}

	err := e.store.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := updateCall(ctx, repo, c); err != nil {
			return err
		}
		for _, p := range c.Participants {
			if err := updateParticipant(ctx, repo, c.ID, p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, storageErr("starting call", err)
	}

	metrics.RecordTransition("start", string(c.State))
	e.notifier.Dispatch(memberRecipients(c), stateEvent(c, CallStateStarted))
	return c, nil
}

// JoinCall marks a participant joined. A call that is not started is
// started for the joining client instead.
func (e *Engine) JoinCall(ctx context.Context, id, userID, clientID string) (*Call, error) {
	defer observe("join")()
	switch {
	case !ValidID(id):
		return nil, argumentErr("wrong call id")
	case !ValidID(userID):
		return nil, argumentErr("wrong user id")
	}

	unlock, err := e.lock(ctx, callKey(id))
	if err != nil {
		return nil, err
	}
	defer unlock()

	c, err := e.load(ctx, e.store, id)
	if err != nil || c == nil {
		return nil, err
	}
	if c.State != CallStateStarted {
		return e.start(ctx, c, userID, clientID)
	}

	p := c.Participant(userID, ParticipantTypeUser)
	if p == nil {
		return c, nil
	}
	p.State, p.ClientID = ParticipantJoined, clientID

	err = e.store.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		return updateParticipant(ctx, repo, c.ID, *p)
	})
	if err != nil {
		return nil, storageErr("joining call", err)
	}

	metrics.RecordTransition("join", string(c.State))
	e.notifier.Dispatch(memberRecipients(c), membershipEvent(presence.EventParticipantJoined, c, userID))
	return c, nil
}

// LeaveCall marks a participant leaved when clientID is the one it joined
// with, and stops the call when nobody (group) or at most one party
// (peer-to-peer) is left.
func (e *Engine) LeaveCall(ctx context.Context, id, userID, clientID string) (*Call, error) {
	defer observe("leave")()
	switch {
	case !ValidID(id):
		return nil, argumentErr("wrong call id")
	case !ValidID(userID):
		return nil, argumentErr("wrong user id")
	}

	unlock, err := e.lock(ctx, callKey(id))
	if err != nil {
		return nil, err
	}
	defer unlock()

	c, err := e.load(ctx, e.store, id)
	if err != nil || c == nil {
		return nil, err
	}
	if c.State != CallStateStarted && c.State != CallStatePaused {
		return c, nil
	}

	leaved := 0
	var left *Participant
	for i := range c.Participants {
		p := &c.Participants[i]
		if !p.IsUser() {
			continue
		}
		if p.ID == userID {
			if p.HasClient(clientID) {
				p.State, p.ClientID = ParticipantLeaved, ""
				left = p
				leaved++
			}
			continue
		}
		if p.State == "" || p.State == ParticipantLeaved {
			leaved++
		}
	}
	if left == nil {
		return c, nil
	}

	err = e.store.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		return updateParticipant(ctx, repo, c.ID, *left)
	})
	if err != nil {
		return nil, storageErr("leaving call", err)
	}

	metrics.RecordTransition("leave", string(c.State))
	e.notifier.Dispatch(memberRecipients(c), membershipEvent(presence.EventParticipantLeaved, c, userID))

	if (c.Group && leaved == len(c.Participants)) || (!c.Group && len(c.Participants)-leaved <= 1) {
		return e.stop(ctx, c, userID, false)
	}
	return c, nil
}

// StopCall stops a call, or deletes it with its participants when remove is
// set. Unknown ids return nil.
func (e *Engine) StopCall(ctx context.Context, id string, remove bool) (*Call, error) {
	defer observe("stop")()
	if !ValidID(id) {
		return nil, argumentErr("wrong call id")
	}

	unlock, err := e.lock(ctx, callKey(id))
	if err != nil {
		return nil, err
	}
	defer unlock()

	c, err := e.load(ctx, e.store, id)
	if err != nil || c == nil {
		return nil, err
	}
	return e.stop(ctx, c, initiatorFrom(ctx), remove)
}

func (e *Engine) stop(ctx context.Context, c *Call, initiator string, remove bool) (*Call, error) {
	c.State = CallStateStopped
	c.LastDate = e.clock().UTC()

	err := e.store.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if !remove {
			return updateCall(ctx, repo, c)
		}
		ok, err := repo.DeleteCall(ctx, c.ID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: call %s not found", ErrInvalidState, c.ID)
		}
		return nil
	})
	if err != nil {
		return nil, storageErr("stopping call", err)
	}

	op := "stop"
	if remove {
		op = "remove"
		e.appendEvent(ctx, audit.Event{Type: audit.EventCallRemoved, CallID: c.ID, ActorUserID: initiator, Message: "call removed"})
	}
	metrics.RecordTransition(op, string(c.State))
	e.notifier.Dispatch(stoppedRecipients(c, initiator, remove), stateEvent(c, CallStateStopped))
	return c, nil
}

// GetCall returns nil for unknown ids.
func (e *Engine) GetCall(ctx context.Context, id string) (*Call, error) {
	if !ValidID(id) {
		return nil, argumentErr("wrong call id")
	}
	return e.load(ctx, e.store, id)
}

// GetUserCalls lists the group calls userID takes part in.
func (e *Engine) GetUserCalls(ctx context.Context, userID string) ([]CallStateInfo, error) {
	if !ValidID(userID) {
		return nil, argumentErr("wrong user id")
	}
	recs, err := e.store.FindUserGroupCalls(ctx, userID)
	if err != nil {
		return nil, storageErr("reading user calls", err)
	}
	return lo.Map(recs, func(r CallRecord, _ int) CallStateInfo {
		return CallStateInfo{ID: r.ID, State: r.State.OrStopped()}
	}), nil
}

// PurgeUserCalls deletes every peer-to-peer call. Run once on start: such
// calls cannot outlive the process that tracked their clients.
func (e *Engine) PurgeUserCalls(ctx context.Context) (int, error) {
	n, err := e.store.DeleteAllUserCalls(ctx)
	if err != nil {
		return 0, storageErr("purging user calls", err)
	}
	e.log.Info("peer-to-peer calls purged", "count", n)
	if n > 0 {
		metrics.RecordReconciled(string(audit.EventCallsPurged), n)
		if e.events != nil {
			if err := e.events.LogPurge(ctx, n); err != nil {
				e.log.Error("recording purge failed", "error", err)
			}
		}
	}
	return n, nil
}

func (e *Engine) AddListener(l presence.Listener) error {
	if !ValidID(l.UserID()) {
		return argumentErr("wrong listener user id")
	}
	e.listeners.Register(l)
	return nil
}

func (e *Engine) RemoveListener(l presence.Listener) {
	e.listeners.Unregister(l)
}

// UserInfo returns a user with the IM accounts an active provider handles.
func (e *Engine) UserInfo(ctx context.Context, id string) (*Identity, error) {
	if !ValidID(id) {
		return nil, argumentErr("wrong user id")
	}
	u, found, err := e.dir.User(ctx, id)
	if err != nil || !found {
		return nil, err
	}
	u.AvatarLink = avatarOr(u.AvatarLink, DefaultProfileAvatar)
	if u.User != nil {
		details := *u.User
		details.IMs = nil
		for _, im := range u.User.IMs {
			info, err := e.resolveIM(ctx, im)
			if err != nil {
				e.log.Warn("skipping IM account", "user_id", id, "im_type", im.Type, "error", err)
				continue
			}
			if info != nil {
				details.IMs = append(details.IMs, *info)
			}
		}
		u.User = &details
	}
	return &u, nil
}

func (e *Engine) resolveIM(ctx context.Context, im IMInfo) (*IMInfo, error) {
	if e.ims == nil {
		return nil, nil
	}
	return e.ims.ResolveIM(ctx, im.Type, im.ID)
}

// SpaceInfo returns a space with the id of its live call, if any.
func (e *Engine) SpaceInfo(ctx context.Context, id string) (*Identity, error) {
	if !ValidID(id) {
		return nil, argumentErr("wrong space id")
	}
	s, found, err := e.dir.Space(ctx, id)
	if err != nil || !found {
		return nil, err
	}
	s.AvatarLink = avatarOr(s.AvatarLink, DefaultSpaceAvatar)
	if err := e.attachGroupCall(ctx, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// RoomInfo builds a chat room from its members. Every member must be a
// known user.
func (e *Engine) RoomInfo(ctx context.Context, id, name, title string, members []string) (*Identity, error) {
	switch {
	case !ValidID(id):
		return nil, argumentErr("wrong room id")
	case !ValidText(name):
		return nil, argumentErr("wrong room name")
	case !ValidText(title):
		return nil, argumentErr("wrong room title")
	}
	if name == "" {
		name = id
	}

	room := RoomIdentity(id, name, title)
	for _, m := range lo.Uniq(members) {
		if !ValidID(m) {
			return nil, argumentErr("wrong room member id")
		}
		u, found, err := e.dir.User(ctx, m)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fmt.Errorf("%w: room member %s", ErrNotFound, m)
		}
		room.Room.Members = append(room.Room.Members, u)
	}
	if err := e.attachGroupCall(ctx, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

func (e *Engine) attachGroupCall(ctx context.Context, group *Identity) error {
	rec, ok, err := e.store.FindByGroupOwner(ctx, group.ID)
	if err != nil {
		return storageErr("reading group call", err)
	}
	if ok {
		group.setGroupCallID(rec.ID)
	}
	return nil
}

func (e *Engine) resolveOwner(ctx context.Context, id string, t OwnerType, title string) (Identity, error) {
	switch t {
	case OwnerUser:
		u, found, err := e.dir.User(ctx, id)
		if err != nil {
			return Identity{}, fmt.Errorf("resolving owner %s: %w", id, err)
		}
		if found {
			u.AvatarLink = avatarOr(u.AvatarLink, DefaultProfileAvatar)
			return u, nil
		}
		// External caller without an account.
		guest := RoomIdentity(id, id, title)
		guest.AvatarLink = DefaultProfileAvatar
		return guest, nil
	case OwnerSpace:
		s, found, err := e.dir.Space(ctx, id)
		if err != nil {
			return Identity{}, fmt.Errorf("resolving owner %s: %w", id, err)
		}
		if found {
			s.AvatarLink = avatarOr(s.AvatarLink, DefaultSpaceAvatar)
			return s, nil
		}
		e.log.Warn("call space not found, using room owner", "owner_id", id)
		return RoomIdentity(id, id, title), nil
	default:
		return RoomIdentity(id, id, title), nil
	}
}

func (e *Engine) resolveParticipants(ctx context.Context, ids []string, providerType string) ([]Participant, error) {
	parts := make([]Participant, 0, len(ids))
	for _, id := range ids {
		u, found, err := e.dir.User(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("resolving participant %s: %w", id, err)
		}
		if found {
			parts = append(parts, Participant{
				ID:         id,
				Type:       ParticipantTypeUser,
				Title:      u.Title,
				AvatarLink: avatarOr(u.AvatarLink, DefaultProfileAvatar),
			})
			continue
		}
		parts = append(parts, Participant{ID: id, Type: providerType, Title: id})
	}
	return parts, nil
}

func uniqueParticipants(ids []string) ([]string, error) {
	for _, id := range ids {
		if !ValidID(id) {
			return nil, argumentErr("wrong participant id")
		}
	}
	return lo.Uniq(ids), nil
}

func updateCall(ctx context.Context, repo Repository, c *Call) error {
	err := repo.UpdateCall(ctx, toCallRecord(c))
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: call %s not found", ErrInvalidState, c.ID)
	}
	return err
}

func updateParticipant(ctx context.Context, repo Repository, callID string, p Participant) error {
	err := repo.UpdateParticipant(ctx, toParticipantRecord(callID, p))
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: participant %s not found in call %s", ErrInvalidState, p.ID, callID)
	}
	return err
}

func (e *Engine) appendEvent(ctx context.Context, ev audit.Event) {
	if e.events == nil {
		return
	}
	if err := e.events.Append(ctx, ev); err != nil {
		e.log.Error("recording call event failed", "type", ev.Type, "call_id", ev.CallID, "error", err)
	}
}

// lock acquires keys in order and returns a function releasing all of them.
func (e *Engine) lock(ctx context.Context, keys ...string) (locks.Unlock, error) {
	held := make([]locks.Unlock, 0, len(keys))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i]()
		}
	}
	for _, k := range keys {
		u, err := e.locker.Lock(ctx, k)
		if err != nil {
			release()
			return nil, fmt.Errorf("locking %s: %w", k, err)
		}
		held = append(held, u)
	}
	return release, nil
}

func callKey(id string) string { return "call:" + id }

func ownerKey(id string) string { return "owner:" + id }

func initiatorFrom(ctx context.Context) string {
	uid, err := auth.UserID(ctx)
	if err != nil {
		return ""
	}
	return uid
}

func argumentErr(msg string) error {
	return fmt.Errorf("%w: %s", ErrArgument, msg)
}

func conflictErr(reason, msg string) error {
	metrics.CallConflicts.WithLabelValues(reason).Inc()
	return fmt.Errorf("%w: %s", ErrConflict, msg)
}

// storageErr wraps err in ErrStorage unless it already carries a calls error.
func storageErr(op string, err error) error {
	for _, known := range []error{ErrArgument, ErrConflict, ErrNotFound, ErrInvalidState, ErrStorage} {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}

func observe(op string) func() {
	start := time.Now()
	return func() {
		metrics.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}
