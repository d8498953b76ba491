// Package campaigns provides the campaign bounded context: outbound
// calling jobs and the contacts they own. The dialer drives campaign
// and contact state exclusively through this repository so admission
// control can be re-derived from persisted status on every cycle.
package campaigns

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Campaign lifecycle statuses.
const (
	StatusCreated   = "created"
	StatusScheduled = "scheduled"
	StatusRunning   = "running"
	StatusPaused    = "paused"
	StatusCompleted = "completed"
)

// Contact statuses. The terminal set is completed, failed and no-answer.
const (
	ContactPending   = "pending"
	ContactCalling   = "calling"
	ContactCompleted = "completed"
	ContactFailed    = "failed"
	ContactNoAnswer  = "no-answer"
)

// TerminalContactStatuses lists statuses from which no further automatic
// transition occurs.
var TerminalContactStatuses = []string{ContactCompleted, ContactFailed, ContactNoAnswer}

var (
	// ErrCampaignNotFound is returned when no campaign exists for the id.
	ErrCampaignNotFound = errors.New("campaign not found")
	// ErrContactNotFound is returned when no contact exists for the id.
	ErrContactNotFound = errors.New("campaign contact not found")
)

// Campaign is one outbound calling job.
type Campaign struct {
	ID                  int64           `json:"id"`
	Name                string          `json:"name"`
	AssignedAgentID     *string         `json:"assignedAgentId"`
	AssignedAgentName   string          `json:"assignedAgentName"`
	FromNumber          string          `json:"fromNumber"`
	TotalContacts       int             `json:"totalContacts"`
	ScheduleAt          *time.Time      `json:"scheduleAt"`
	Status              string          `json:"status"`
	ProgressPct         int             `json:"progressPct"`
	AnalysisProgressPct int             `json:"analysisProgressPct"`
	Config              json.RawMessage `json:"config"`
	FileName            string          `json:"fileName"`
	CreatedAt           time.Time       `json:"createdAt"`
	UpdatedAt           time.Time       `json:"updatedAt"`
}

// Contact is one phone number target within a campaign.
type Contact struct {
	ID         int64           `json:"id"`
	CampaignID int64           `json:"campaignId"`
	Name       string          `json:"name"`
	Phone      string          `json:"phone"`
	Status     string          `json:"status"`
	CallID     *string         `json:"callId"`
	Extra      json.RawMessage `json:"extra"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// Repository provides data access for campaigns and their contacts.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new campaigns repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const campaignColumns = `id, name, assigned_agent_id, assigned_agent_name, from_number, total_contacts,
	schedule_at, status, progress_pct, analysis_progress_pct, config, file_name, created_at, updated_at`

func scanCampaign(row pgx.Row) (Campaign, error) {
	var c Campaign
	err := row.Scan(
		&c.ID, &c.Name, &c.AssignedAgentID, &c.AssignedAgentName, &c.FromNumber, &c.TotalContacts,
		&c.ScheduleAt, &c.Status, &c.ProgressPct, &c.AnalysisProgressPct, &c.Config, &c.FileName,
		&c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}

const contactColumns = `id, campaign_id, name, phone, status, call_id, extra, created_at, updated_at`

func scanContact(row pgx.Row) (Contact, error) {
	var ct Contact
	err := row.Scan(
		&ct.ID, &ct.CampaignID, &ct.Name, &ct.Phone, &ct.Status, &ct.CallID,
		&ct.Extra, &ct.CreatedAt, &ct.UpdatedAt,
	)
	return ct, err
}

// Create inserts a new campaign.
func (r *Repository) Create(ctx context.Context, c Campaign) (Campaign, error) {
	return scanCampaign(r.pool.QueryRow(ctx, `
		INSERT INTO campaigns (name, assigned_agent_id, assigned_agent_name, from_number, schedule_at, status, config, file_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+campaignColumns+`
	`, c.Name, c.AssignedAgentID, c.AssignedAgentName, c.FromNumber, c.ScheduleAt, c.Status, c.Config, c.FileName))
}

// Get retrieves a campaign by id.
func (r *Repository) Get(ctx context.Context, id int64) (Campaign, error) {
	c, err := scanCampaign(r.pool.QueryRow(ctx, `
		SELECT `+campaignColumns+` FROM campaigns WHERE id = $1
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Campaign{}, ErrCampaignNotFound
	}
	return c, err
}

// List returns all campaigns, newest first.
func (r *Repository) List(ctx context.Context) ([]Campaign, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+campaignColumns+` FROM campaigns ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCampaigns(rows)
}

// ListByStatus returns up to limit campaigns in the given status, oldest
// first so a backlog is serviced fairly across cycles.
func (r *Repository) ListByStatus(ctx context.Context, status string, limit int) ([]Campaign, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+campaignColumns+` FROM campaigns
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCampaigns(rows)
}

// ListScheduledDue returns scheduled campaigns whose start time has passed.
func (r *Repository) ListScheduledDue(ctx context.Context, now time.Time) ([]Campaign, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+campaignColumns+` FROM campaigns
		WHERE status = $1 AND schedule_at IS NOT NULL AND schedule_at <= $2
		ORDER BY schedule_at ASC
	`, StatusScheduled, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCampaigns(rows)
}

func collectCampaigns(rows pgx.Rows) ([]Campaign, error) {
	var result []Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// Update replaces a campaign's editable fields.
func (r *Repository) Update(ctx context.Context, c Campaign) (Campaign, error) {
	updated, err := scanCampaign(r.pool.QueryRow(ctx, `
		UPDATE campaigns
		SET name = $2, assigned_agent_id = $3, assigned_agent_name = $4, from_number = $5, config = $6, updated_at = now()
		WHERE id = $1
		RETURNING `+campaignColumns+`
	`, c.ID, c.Name, c.AssignedAgentID, c.AssignedAgentName, c.FromNumber, c.Config))
	if errors.Is(err, pgx.ErrNoRows) {
		return Campaign{}, ErrCampaignNotFound
	}
	return updated, err
}

// SetStatus moves a campaign to a new lifecycle status.
func (r *Repository) SetStatus(ctx context.Context, id int64, status string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE campaigns SET status = $2, updated_at = now() WHERE id = $1
	`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCampaignNotFound
	}
	return nil
}

// SetSchedule stamps a campaign's scheduled start and status together.
func (r *Repository) SetSchedule(ctx context.Context, id int64, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE campaigns SET schedule_at = $2, status = $3, updated_at = now() WHERE id = $1
	`, id, at, StatusScheduled)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCampaignNotFound
	}
	return nil
}

// SetProgress writes the recomputed progress percentages. Writes are
// last-write-wins; recomputation is idempotent and convergent.
func (r *Repository) SetProgress(ctx context.Context, id int64, progressPct, analysisPct int) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE campaigns SET progress_pct = $2, analysis_progress_pct = $3, updated_at = now() WHERE id = $1
	`, id, progressPct, analysisPct)
	return err
}

// Delete removes a campaign and cascades to its contacts.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM campaigns WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCampaignNotFound
	}
	return nil
}

// ---- Contacts ----

// BulkInsertContacts adds contacts and refreshes the campaign's contact
// count snapshot in one transaction.
func (r *Repository) BulkInsertContacts(ctx context.Context, campaignID int64, contacts []Contact) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	inserted := 0
	for _, ct := range contacts {
		extra := ct.Extra
		if len(extra) == 0 {
			extra = json.RawMessage(`{}`)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO campaign_contacts (campaign_id, name, phone, extra)
			VALUES ($1, $2, $3, $4)
		`, campaignID, ct.Name, ct.Phone, extra); err != nil {
			return 0, err
		}
		inserted++
	}

	if _, err := tx.Exec(ctx, `
		UPDATE campaigns
		SET total_contacts = (SELECT COUNT(*) FROM campaign_contacts WHERE campaign_id = $1), updated_at = now()
		WHERE id = $1
	`, campaignID); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return inserted, nil
}

// ListContacts returns a campaign's contacts in creation order.
func (r *Repository) ListContacts(ctx context.Context, campaignID int64) ([]Contact, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+contactColumns+` FROM campaign_contacts
		WHERE campaign_id = $1
		ORDER BY id ASC
	`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectContacts(rows)
}

// GetContact retrieves one contact.
func (r *Repository) GetContact(ctx context.Context, contactID int64) (Contact, error) {
	ct, err := scanContact(r.pool.QueryRow(ctx, `
		SELECT `+contactColumns+` FROM campaign_contacts WHERE id = $1
	`, contactID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Contact{}, ErrContactNotFound
	}
	return ct, err
}

// GetContactByCallID finds the contact linked to a placed call.
func (r *Repository) GetContactByCallID(ctx context.Context, callID string) (Contact, error) {
	ct, err := scanContact(r.pool.QueryRow(ctx, `
		SELECT `+contactColumns+` FROM campaign_contacts WHERE call_id = $1
	`, callID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Contact{}, ErrContactNotFound
	}
	return ct, err
}

// UpdateContact replaces a contact's name and phone.
func (r *Repository) UpdateContact(ctx context.Context, ct Contact) (Contact, error) {
	updated, err := scanContact(r.pool.QueryRow(ctx, `
		UPDATE campaign_contacts
		SET name = $2, phone = $3, updated_at = now()
		WHERE id = $1
		RETURNING `+contactColumns+`
	`, ct.ID, ct.Name, ct.Phone))
	if errors.Is(err, pgx.ErrNoRows) {
		return Contact{}, ErrContactNotFound
	}
	return updated, err
}

// DeleteContact removes one contact and refreshes the contact count.
func (r *Repository) DeleteContact(ctx context.Context, campaignID, contactID int64) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM campaign_contacts WHERE id = $1 AND campaign_id = $2
	`, contactID, campaignID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrContactNotFound
	}
	_, err = r.pool.Exec(ctx, `
		UPDATE campaigns
		SET total_contacts = (SELECT COUNT(*) FROM campaign_contacts WHERE campaign_id = $1), updated_at = now()
		WHERE id = $1
	`, campaignID)
	return err
}

// NextPendingContact returns the oldest pending contact for a campaign,
// or nil when none remain. Stable ordering by id preserves creation order.
func (r *Repository) NextPendingContact(ctx context.Context, campaignID int64) (*Contact, error) {
	ct, err := scanContact(r.pool.QueryRow(ctx, `
		SELECT `+contactColumns+` FROM campaign_contacts
		WHERE campaign_id = $1 AND status = $2
		ORDER BY id ASC
		LIMIT 1
	`, campaignID, ContactPending))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ct, nil
}

// ContactStatusCounts returns the number of contacts per status for a
// campaign. Absent statuses are simply missing from the map.
func (r *Repository) ContactStatusCounts(ctx context.Context, campaignID int64) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT status, COUNT(*) FROM campaign_contacts
		WHERE campaign_id = $1
		GROUP BY status
	`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// ListCallingContacts returns every contact currently mid-call across
// all campaigns, for the status refresh loop. Contacts without a call
// id are included so the refresh loop can write them off instead of
// letting them hold their campaign's admission slot forever.
func (r *Repository) ListCallingContacts(ctx context.Context) ([]Contact, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+contactColumns+` FROM campaign_contacts
		WHERE status = $1
		ORDER BY id ASC
	`, ContactCalling)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectContacts(rows)
}

// SetContactStatus writes a contact's status.
func (r *Repository) SetContactStatus(ctx context.Context, contactID int64, status string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE campaign_contacts SET status = $2, updated_at = now() WHERE id = $1
	`, contactID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrContactNotFound
	}
	return nil
}

// SetContactDispatch writes the status, call linkage and extra blob
// together, as the gateway does when a call is placed or rejected.
func (r *Repository) SetContactDispatch(ctx context.Context, contactID int64, status string, callID *string, extra json.RawMessage) error {
	if len(extra) == 0 {
		extra = nil
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE campaign_contacts
		SET status = $2,
		    call_id = $3,
		    extra = COALESCE(extra, '{}'::jsonb) || COALESCE($4::jsonb, '{}'::jsonb),
		    updated_at = now()
		WHERE id = $1
	`, contactID, status, callID, extra)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrContactNotFound
	}
	return nil
}

func collectContacts(rows pgx.Rows) ([]Contact, error) {
	var result []Contact
	for rows.Next() {
		ct, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, ct)
	}
	return result, rows.Err()
}
