package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"wasteops-backend/internal/audit"
	"wasteops-backend/internal/docgen"
	"wasteops-backend/internal/documents"
	"wasteops-backend/internal/queue"
	"wasteops-backend/internal/shared/metrics"
	"wasteops-backend/internal/shared/telemetry"
)

// DefaultTimeout bounds a transition when the service has none configured.
const DefaultTimeout = 30 * time.Second

// Service applies lifecycle transitions to jobs.
type Service struct {
	Store       Store
	Docs        *documents.Service
	Renderer    docgen.Renderer
	Templates   audit.Templates
	Queue       queue.Client
	Timeout     time.Duration
	CompanyName string
	Now         func() time.Time
}

// TransitionRequest is one attempt to move a job along the table.
type TransitionRequest struct {
	JobID   int64
	Action  Action
	Payload Payload
	// ExpectedVersion, when set, must match the locked job's version.
	ExpectedVersion *int64
	Actor           audit.Actor
	RequestID       string
}

// Result is the committed outcome of a transition.
type Result struct {
	From      Status               `json:"from"`
	Job       Job                  `json:"job"`
	Documents []documents.Document `json:"documents"`
}

// RequestQuote creates a job in QuoteRequested together with its
// "Job Created" audit entry.
func (s *Service) RequestQuote(ctx context.Context, in NewJob, actor audit.Actor) (Job, error) {
	if err := in.validate(); err != nil {
		return Job{}, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	now := s.now()
	job := Job{
		Status:       StatusQuoteRequested,
		ClientRef:    strings.TrimSpace(in.ClientRef),
		ClientName:   strings.TrimSpace(in.ClientName),
		AddressLine1: strings.TrimSpace(in.AddressLine1),
		AddressLine2: strings.TrimSpace(in.AddressLine2),
		City:         strings.TrimSpace(in.City),
		Postcode:     strings.TrimSpace(in.Postcode),
		Items:        append([]Item(nil), in.Items...),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for i := range job.Items {
		if job.Items[i].Quantity == 0 {
			job.Items[i].Quantity = 1
		}
	}

	entry := audit.NewEntry(0, actor, ActionRequestQuote.auditKey(), s.templates().Render(ActionRequestQuote.auditKey()), true)
	entry.CreatedAt = now
	created, err := s.Store.Create(ctx, job, entry)
	if err != nil {
		err = classify(err)
		metrics.IncTransitionFailure(Reason(err))
		return Job{}, err
	}

	metrics.IncTransition(string(ActionRequestQuote))
	telemetry.Info("job.created", map[string]any{
		"job_id":   created.ID,
		"job_code": created.Code,
		"status":   created.Status.String(),
	})
	s.notify(ctx, queue.Message{
		Event:      queue.EventJobTransitioned,
		JobID:      created.ID,
		JobCode:    created.Code,
		Action:     string(ActionRequestQuote),
		Status:     created.Status.String(),
		Version:    created.Version,
		OccurredAt: now.Format(time.RFC3339),
	})
	return created, nil
}

// Get returns a job by id.
func (s *Service) Get(ctx context.Context, id int64) (Job, error) {
	if id <= 0 {
		return Job{}, ErrNotFound
	}
	return s.Store.Get(ctx, id)
}

// Transition applies req under the job's lock. The status change, its audit
// entries and any issued documents commit together or not at all.
func (s *Service) Transition(ctx context.Context, req TransitionRequest) (Result, error) {
	start := time.Now()
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, from, err := s.transition(ctx, req)
	metrics.ObserveTransitionDurationMs(metrics.Since(start))
	if err != nil {
		err = classify(err)
		metrics.IncTransitionFailure(Reason(err))
		telemetry.Warn("job.transition_failed", map[string]any{
			"job_id":     req.JobID,
			"action":     string(req.Action),
			"reason":     Reason(err),
			"error":      err,
			"request_id": req.RequestID,
		})
		return Result{}, err
	}

	metrics.IncTransition(string(req.Action))
	for _, doc := range res.Documents {
		metrics.IncDocumentIssued(doc.Kind.String())
	}
	telemetry.Info("job.transition", map[string]any{
		"job_id":            res.Job.ID,
		"action":            string(req.Action),
		"status_transition": from.String() + "->" + res.Job.Status.String(),
		"version":           res.Job.Version,
		"documents":         len(res.Documents),
		"duration_ms":       metrics.Since(start),
		"request_id":        req.RequestID,
	})
	s.publish(ctx, req.Action, req.RequestID, res)
	return res, nil
}

func (s *Service) transition(ctx context.Context, req TransitionRequest) (Result, Status, error) {
	rule, ok := actionRules[req.Action]
	if !ok {
		return Result{}, 0, invalid("action", fmt.Sprintf("unknown action %q", req.Action))
	}
	if req.Action == ActionRequestQuote {
		return Result{}, 0, &TransitionError{Kind: ErrInvalidTransition, Detail: "request_quote only applies when a job is created"}
	}

	tx, err := s.Store.Begin(ctx, req.JobID)
	if err != nil {
		return Result{}, 0, err
	}
	defer tx.Rollback()

	job := tx.Job()
	if req.ExpectedVersion != nil && *req.ExpectedVersion != job.Version {
		return Result{}, job.Status, &TransitionError{
			Kind:   ErrConflict,
			Detail: fmt.Sprintf("expected version %d, job is at %d", *req.ExpectedVersion, job.Version),
		}
	}
	if !req.Action.Permits(job.Status) {
		return Result{}, job.Status, &TransitionError{
			Kind:   ErrInvalidTransition,
			Detail: fmt.Sprintf("cannot %s a job in %s", req.Action, job.Status),
		}
	}

	now := s.now()
	next := job.clone()
	if err := req.Payload.apply(req.Action, &next, now); err != nil {
		return Result{}, job.Status, err
	}
	next.Status = rule.target
	next.UpdatedAt = now
	if err := tx.Save(ctx, next); err != nil {
		return Result{}, job.Status, err
	}
	next.Version = job.Version + 1

	entry := audit.NewEntry(job.ID, req.Actor, rule.audit, s.auditContent(req.Action, next, req.Payload), rule.system)
	entry.CreatedAt = now
	if _, err := tx.Audit().Append(ctx, entry); err != nil {
		return Result{}, job.Status, storageErr("append audit", err)
	}

	var c compensation
	docs, err := s.issueFor(ctx, tx, req.Action, next, req.Actor, now, &c)
	if err != nil {
		c.run(ctx)
		return Result{}, job.Status, err
	}
	if err := tx.Commit(ctx); err != nil {
		c.run(ctx)
		return Result{}, job.Status, err
	}
	return Result{From: job.Status, Job: next, Documents: docs}, job.Status, nil
}

// issueFor renders and stores the documents an action produces.
func (s *Service) issueFor(ctx context.Context, tx Tx, action Action, job Job, actor audit.Actor, now time.Time, c *compensation) ([]documents.Document, error) {
	var kinds []documents.Kind
	switch action {
	case ActionMarkCollected, ActionReceiveAtFacility:
		kinds = append(kinds, documents.KindCollectionManifest)
		if job.HasHazardous() {
			kinds = append(kinds, documents.KindHazardousWasteNote)
		}
	case ActionComplete:
		if job.HasDataBearing() {
			kinds = append(kinds, documents.KindDataDestructionCertificate)
		}
	}

	out := make([]documents.Document, 0, len(kinds))
	for _, kind := range kinds {
		doc, err := s.issue(ctx, tx, job, kind, actor, now, c)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

func (s *Service) issue(ctx context.Context, tx Tx, job Job, kind documents.Kind, actor audit.Actor, now time.Time, c *compensation) (documents.Document, error) {
	if s.Renderer == nil || s.Docs == nil {
		return documents.Document{}, &TransitionError{Kind: ErrRender, Detail: "document pipeline not configured"}
	}
	opts := docgen.Options{IssuedAt: now, CompanyName: s.CompanyName}
	if kind.Public() {
		opts.ExternalID = documents.NewExternalID()
	}

	data, err := s.Renderer.Render(ctx, Snapshot(job), kind, opts)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return documents.Document{}, ctxErr
		}
		return documents.Document{}, &TransitionError{Kind: ErrRender, Detail: strings.TrimPrefix(err.Error(), docgen.ErrRender.Error()+": ")}
	}

	issued, err := s.Docs.Issue(ctx, tx.Documents(), documents.IssueRequest{
		JobID:      job.ID,
		JobCode:    job.Code,
		Kind:       kind,
		Data:       data,
		ExternalID: opts.ExternalID,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return documents.Document{}, ctxErr
		}
		if errors.Is(err, documents.ErrDuplicate) {
			return documents.Document{}, &TransitionError{Kind: ErrConflict, Detail: "document changed concurrently"}
		}
		return documents.Document{}, storageErr("issue "+kind.String(), err)
	}
	c.add(issued.Undo)

	var content string
	switch {
	case issued.Document.ExternalID != nil:
		content = s.templates().Render("certificate_issued", kind.Title(), *issued.Document.ExternalID)
	case issued.Replaced:
		content = s.templates().Render("document_regenerate", kind.Title())
	default:
		content = s.templates().Render("document_issued", kind.Title(), issued.Document.OriginalFilename)
	}
	entry := audit.NewEntry(job.ID, actor, "document_issued", content, true)
	entry.CreatedAt = now
	if _, err := tx.Audit().Append(ctx, entry); err != nil {
		return documents.Document{}, storageErr("append audit", err)
	}
	return issued.Document, nil
}

// IssueCertificate issues a fresh data-destruction certificate for a
// completed job. The job's status does not change.
func (s *Service) IssueCertificate(ctx context.Context, jobID int64, actor audit.Actor, requestID string) (documents.Document, error) {
	return s.reissue(ctx, "issue_certificate", jobID, actor, requestID, documents.KindDataDestructionCertificate, func(job Job) error {
		if job.Status != StatusCompleted {
			return &TransitionError{Kind: ErrInvalidTransition, Detail: fmt.Sprintf("certificates are issued for completed jobs, job is %s", job.Status)}
		}
		if !job.HasDataBearing() {
			return invalid("items", "job has no data-bearing items")
		}
		return nil
	})
}

// RegenerateManifest re-renders the current collection manifest of a job
// that has been collected.
func (s *Service) RegenerateManifest(ctx context.Context, jobID int64, actor audit.Actor, requestID string) (documents.Document, error) {
	return s.reissue(ctx, "regenerate_manifest", jobID, actor, requestID, documents.KindCollectionManifest, func(job Job) error {
		if job.CollectedAt == nil {
			return &TransitionError{Kind: ErrInvalidTransition, Detail: fmt.Sprintf("job %s has not been collected", job.Code)}
		}
		return nil
	})
}

func (s *Service) reissue(ctx context.Context, op string, jobID int64, actor audit.Actor, requestID string, kind documents.Kind, check func(Job) error) (documents.Document, error) {
	start := time.Now()
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	doc, err := func() (documents.Document, error) {
		tx, err := s.Store.Begin(ctx, jobID)
		if err != nil {
			return documents.Document{}, err
		}
		defer tx.Rollback()

		job := tx.Job()
		if err := check(job); err != nil {
			return documents.Document{}, err
		}
		var c compensation
		doc, err := s.issue(ctx, tx, job, kind, actor, s.now(), &c)
		if err != nil {
			c.run(ctx)
			return documents.Document{}, err
		}
		if err := tx.Commit(ctx); err != nil {
			c.run(ctx)
			return documents.Document{}, err
		}
		return doc, nil
	}()
	if err != nil {
		err = classify(err)
		metrics.IncTransitionFailure(Reason(err))
		telemetry.Warn("job.reissue_failed", map[string]any{
			"job_id": jobID, "op": op, "reason": Reason(err), "error": err, "request_id": requestID,
		})
		return documents.Document{}, err
	}

	metrics.IncDocumentIssued(doc.Kind.String())
	telemetry.Info("job.reissue", map[string]any{
		"job_id": jobID, "op": op, "kind": doc.Kind.String(), "duration_ms": metrics.Since(start), "request_id": requestID,
	})
	s.notify(ctx, documentMessage(doc, requestID, s.now()))
	return doc, nil
}

// Snapshot converts a job into the generator's input.
func Snapshot(job Job) docgen.Snapshot {
	snap := docgen.Snapshot{
		JobID:          job.ID,
		JobCode:        job.Code,
		Status:         job.Status.Label(),
		ClientRef:      job.ClientRef,
		ClientName:     job.ClientName,
		Address:        job.Address(),
		CollectionDate: job.CollectionDate,
		CollectedAt:    job.CollectedAt,
		CompletedAt:    job.CompletedAt,
		Customer:       docgen.Signature{Name: job.CustomerName, Image: job.CustomerSignature},
		Driver:         docgen.Signature{Name: job.DriverName, Image: job.DriverSignature},
		Staff:          docgen.Signature{Name: job.StaffName, Image: job.StaffSignature},
	}
	if job.QuoteAmount != nil {
		snap.QuoteAmount = *job.QuoteAmount
	}
	for _, it := range job.Items {
		snap.Items = append(snap.Items, docgen.Item{
			Category:    it.Category,
			Subcategory: it.Subcategory,
			Quantity:    it.Quantity,
			Description: it.Description,
			Hazardous:   it.IsHazardous(),
			DataBearing: it.IsDataBearing(),
		})
	}
	return snap
}

func (s *Service) auditContent(action Action, job Job, p Payload) string {
	t := s.templates()
	key := action.auditKey()
	switch action {
	case ActionProvideQuote:
		return t.Render(key, *job.QuoteAmount)
	case ActionRequestCollection:
		return t.Render(key, job.RequestedDate.Format(dateLayout))
	case ActionSchedule:
		return t.Render(key, job.CollectionDate.Format(dateLayout))
	case ActionReceiveAtFacility:
		return t.Render(key, job.StaffName)
	case ActionCancel:
		if reason := strings.TrimSpace(p.Reason); reason != "" {
			return t.Render(key) + ": " + reason
		}
	}
	return t.Render(key)
}

// classify maps raw context errors onto the transition taxonomy.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TransitionError{Kind: ErrTimeout, Detail: "transition did not finish in time"}
	}
	return err
}

func (s *Service) publish(ctx context.Context, action Action, requestID string, res Result) {
	now := s.now()
	s.notify(ctx, queue.Message{
		Event:      queue.EventJobTransitioned,
		JobID:      res.Job.ID,
		JobCode:    res.Job.Code,
		Action:     string(action),
		Status:     res.Job.Status.String(),
		Version:    res.Job.Version,
		RequestID:  requestID,
		OccurredAt: now.Format(time.RFC3339),
	})
	for _, doc := range res.Documents {
		msg := documentMessage(doc, requestID, now)
		msg.JobCode = res.Job.Code
		s.notify(ctx, msg)
	}
}

func documentMessage(doc documents.Document, requestID string, now time.Time) queue.Message {
	msg := queue.Message{
		Event:      queue.EventDocumentIssued,
		JobID:      doc.JobID,
		JobCode:    doc.JobCode(),
		DocumentID: doc.ID,
		Kind:       doc.Kind.String(),
		RequestID:  requestID,
		OccurredAt: now.Format(time.RFC3339),
	}
	if doc.ExternalID != nil {
		msg.ExternalID = *doc.ExternalID
	}
	return msg
}

// notify publishes after commit. Delivery failures are logged only; the
// transition has already happened.
func (s *Service) notify(ctx context.Context, msg queue.Message) {
	if s.Queue == nil {
		return
	}
	if err := s.Queue.Send(context.WithoutCancel(ctx), msg); err != nil {
		telemetry.Warn("queue.send_failed", map[string]any{
			"event":  msg.Event,
			"job_id": msg.JobID,
			"error":  err,
		})
	}
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

func (s *Service) templates() audit.Templates {
	if s.Templates != nil {
		return s.Templates
	}
	return audit.DefaultTemplates
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// compensation collects undo steps for blob writes made before commit.
type compensation struct {
	undo []func(context.Context) error
}

func (c *compensation) add(fn func(context.Context) error) {
	if fn != nil {
		c.undo = append(c.undo, fn)
	}
}

// run reverts in reverse order. It ignores the caller's deadline since the
// usual reason to be here is that the deadline passed.
func (c *compensation) run(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	for i := len(c.undo) - 1; i >= 0; i-- {
		if err := c.undo[i](ctx); err != nil {
			telemetry.Error("documents.compensation_failed", map[string]any{"error": err})
		}
	}
	c.undo = nil
}
