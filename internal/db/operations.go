package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type PrinterOperations struct{}

func (o *PrinterOperations) CreatePrinter(ctx context.Context, p *Printer) error {
	if p.Port == 0 {
		p.Port = 9100
	}
	if p.Status == "" {
		p.Status = PrinterStatusActive
	}
	result, err := GetDB().ExecContext(ctx, InsertPrinter,
		p.VendorID, p.Name, p.Engine, p.IPAddress, p.Port, p.DPI,
		p.MaxWidthIn, p.MaxHeightIn, p.MediaJSON, p.Status)
	if err != nil {
		return fmt.Errorf("failed to create printer: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get printer id: %w", err)
	}
	p.ID = id
	return nil
}

func scanPrinter(scan func(dest ...any) error) (*Printer, error) {
	p := &Printer{}
	var lastSeenAt sql.NullTime
	err := scan(
		&p.ID, &p.VendorID, &p.Name, &p.Engine, &p.IPAddress, &p.Port, &p.DPI,
		&p.MaxWidthIn, &p.MaxHeightIn, &p.MediaJSON, &p.Status,
		&lastSeenAt, &p.TotalPrints, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if lastSeenAt.Valid {
		p.LastSeenAt = &lastSeenAt.Time
	}
	return p, nil
}

func (o *PrinterOperations) GetPrinterByID(ctx context.Context, id int64) (*Printer, error) {
	row := GetDB().QueryRowContext(ctx, GetPrinterByID, id)
	p, err := scanPrinter(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get printer: %w", err)
	}
	return p, nil
}

func (o *PrinterOperations) ListPrinters(ctx context.Context) ([]*Printer, error) {
	return o.listPrinters(ctx, ListPrinters)
}

func (o *PrinterOperations) ListActivePrinters(ctx context.Context) ([]*Printer, error) {
	return o.listPrinters(ctx, ListPrintersByStatus, PrinterStatusActive)
}

func (o *PrinterOperations) listPrinters(ctx context.Context, query string, args ...any) ([]*Printer, error) {
	rows, err := GetDB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list printers: %w", err)
	}
	defer rows.Close()

	var printers []*Printer
	for rows.Next() {
		p, err := scanPrinter(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan printer: %w", err)
		}
		printers = append(printers, p)
	}
	return printers, rows.Err()
}

func (o *PrinterOperations) UpdatePrinter(ctx context.Context, p *Printer) error {
	_, err := GetDB().ExecContext(ctx, UpdatePrinter,
		p.Name, p.Engine, p.IPAddress, p.Port, p.DPI,
		p.MaxWidthIn, p.MaxHeightIn, p.MediaJSON, p.ID)
	if err != nil {
		return fmt.Errorf("failed to update printer: %w", err)
	}
	return nil
}

func (o *PrinterOperations) UpdatePrinterStatus(ctx context.Context, id int64, status string) error {
	_, err := GetDB().ExecContext(ctx, UpdatePrinterStatus, status, id)
	if err != nil {
		return fmt.Errorf("failed to update printer status: %w", err)
	}
	return nil
}

func (o *PrinterOperations) IncrementPrints(ctx context.Context, id int64, count int) error {
	_, err := GetDB().ExecContext(ctx, IncrementPrinterPrints, count, id)
	if err != nil {
		return fmt.Errorf("failed to increment printer prints: %w", err)
	}
	return nil
}

func (o *PrinterOperations) DeletePrinter(ctx context.Context, id int64) error {
	_, err := GetDB().ExecContext(ctx, DeletePrinter, id)
	if err != nil {
		return fmt.Errorf("failed to delete printer: %w", err)
	}
	return nil
}

type TemplateOperations struct{}

func (o *TemplateOperations) CreateTemplate(ctx context.Context, t *Template) error {
	if t.Version == 0 {
		t.Version = 1
	}
	result, err := GetDB().ExecContext(ctx, InsertTemplate,
		t.Name, t.Version, t.Description, t.SchemaJSON, t.WidthIn, t.HeightIn)
	if err != nil {
		return fmt.Errorf("failed to create template: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get template id: %w", err)
	}
	t.ID = id
	return nil
}

// NewVersion inserts a new row with a bumped version; rows referenced by a
// published profile are never mutated in place.
func (o *TemplateOperations) NewVersion(ctx context.Context, name, description, schemaJSON string, widthIn, heightIn float64) (*Template, error) {
	latest, err := o.GetLatestByName(ctx, name)
	version := 1
	if err == nil {
		version = latest.Version + 1
	} else if err != sql.ErrNoRows {
		return nil, err
	}

	t := &Template{
		Name:        name,
		Version:     version,
		Description: description,
		SchemaJSON:  schemaJSON,
		WidthIn:     widthIn,
		HeightIn:    heightIn,
	}
	if err := o.CreateTemplate(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func scanTemplate(scan func(dest ...any) error) (*Template, error) {
	t := &Template{}
	err := scan(&t.ID, &t.Name, &t.Version, &t.Description, &t.SchemaJSON,
		&t.WidthIn, &t.HeightIn, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (o *TemplateOperations) GetTemplateByID(ctx context.Context, id int64) (*Template, error) {
	row := GetDB().QueryRowContext(ctx, GetTemplateByID, id)
	t, err := scanTemplate(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return t, nil
}

func (o *TemplateOperations) GetLatestByName(ctx context.Context, name string) (*Template, error) {
	row := GetDB().QueryRowContext(ctx, GetLatestTemplateByName, name)
	t, err := scanTemplate(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get template by name: %w", err)
	}
	return t, nil
}

func (o *TemplateOperations) ListTemplates(ctx context.Context) ([]*Template, error) {
	rows, err := GetDB().QueryContext(ctx, ListTemplates)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	var templates []*Template
	for rows.Next() {
		t, err := scanTemplate(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

type ProfileOperations struct{}

func (o *ProfileOperations) CreateProfile(ctx context.Context, p *LabelProfile) error {
	if p.Copies == 0 {
		p.Copies = 1
	}
	if p.Orientation == "" {
		p.Orientation = "portrait"
	}
	if p.Status == "" {
		p.Status = ProfileStatusDraft
	}
	result, err := GetDB().ExecContext(ctx, InsertProfile,
		p.VendorID, p.Name, p.TemplateID, p.Engine, p.WidthIn, p.HeightIn,
		p.Orientation, p.Copies, p.IsSystemDefault, p.IsSystemShipping, p.Status)
	if err != nil {
		return fmt.Errorf("failed to create label profile: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get label profile id: %w", err)
	}
	p.ID = id
	return nil
}

func scanProfile(scan func(dest ...any) error) (*LabelProfile, error) {
	p := &LabelProfile{}
	err := scan(&p.ID, &p.VendorID, &p.Name, &p.TemplateID, &p.Engine,
		&p.WidthIn, &p.HeightIn, &p.Orientation, &p.Copies,
		&p.IsSystemDefault, &p.IsSystemShipping, &p.Status,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (o *ProfileOperations) GetProfileByID(ctx context.Context, id int64) (*LabelProfile, error) {
	row := GetDB().QueryRowContext(ctx, GetProfileByID, id)
	p, err := scanProfile(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get label profile: %w", err)
	}
	return p, nil
}

func (o *ProfileOperations) GetSystemDefault(ctx context.Context) (*LabelProfile, error) {
	row := GetDB().QueryRowContext(ctx, GetSystemDefaultProfile)
	p, err := scanProfile(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get system default profile: %w", err)
	}
	return p, nil
}

func (o *ProfileOperations) GetShippingProfile(ctx context.Context) (*LabelProfile, error) {
	row := GetDB().QueryRowContext(ctx, GetShippingProfile)
	p, err := scanProfile(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get shipping profile: %w", err)
	}
	return p, nil
}

func (o *ProfileOperations) ListProfiles(ctx context.Context) ([]*LabelProfile, error) {
	return o.listProfiles(ctx, ListProfiles)
}

func (o *ProfileOperations) ListProfilesByVendor(ctx context.Context, vendorID string) ([]*LabelProfile, error) {
	return o.listProfiles(ctx, ListProfilesByVendor, vendorID)
}

func (o *ProfileOperations) listProfiles(ctx context.Context, query string, args ...any) ([]*LabelProfile, error) {
	rows, err := GetDB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list label profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*LabelProfile
	for rows.Next() {
		p, err := scanProfile(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan label profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

func (o *ProfileOperations) UpdateProfile(ctx context.Context, p *LabelProfile) error {
	_, err := GetDB().ExecContext(ctx, UpdateProfile,
		p.Name, p.TemplateID, p.Engine, p.WidthIn, p.HeightIn,
		p.Orientation, p.Copies, p.ID)
	if err != nil {
		return fmt.Errorf("failed to update label profile: %w", err)
	}
	return nil
}

func (o *ProfileOperations) UpdateProfileStatus(ctx context.Context, id int64, status string) error {
	_, err := GetDB().ExecContext(ctx, UpdateProfileStatus, status, id)
	if err != nil {
		return fmt.Errorf("failed to update label profile status: %w", err)
	}
	return nil
}

func (o *ProfileOperations) DeleteProfile(ctx context.Context, id int64) error {
	_, err := GetDB().ExecContext(ctx, DeleteProfile, id)
	if err != nil {
		return fmt.Errorf("failed to delete label profile: %w", err)
	}
	return nil
}

type JobOperations struct{}

func (o *JobOperations) CreateLabelJob(ctx context.Context, j *LabelJob) error {
	if j.Copies <= 0 {
		j.Copies = 1
	}
	if j.Status == "" {
		j.Status = "queued"
	}
	result, err := GetDB().ExecContext(ctx, InsertLabelJob,
		j.SourceType, j.SourceID, j.ProfileID, j.RequestedBy, j.Copies, j.PayloadJSON, j.Status)
	if err != nil {
		return fmt.Errorf("failed to create label job: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get label job id: %w", err)
	}
	j.ID = id
	return nil
}

func scanLabelJob(scan func(dest ...any) error) (*LabelJob, error) {
	j := &LabelJob{}
	var startedAt, completedAt sql.NullTime
	err := scan(&j.ID, &j.SourceType, &j.SourceID, &j.ProfileID, &j.RequestedBy,
		&j.Copies, &j.PayloadJSON, &j.Status, &j.ErrorMessage, &j.OutputPath,
		&j.CreatedAt, &startedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	if startedAt.Valid {
		j.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		j.CompletedAt = &completedAt.Time
	}
	return j, nil
}

func (o *JobOperations) GetLabelJobByID(ctx context.Context, id int64) (*LabelJob, error) {
	row := GetDB().QueryRowContext(ctx, GetLabelJobByID, id)
	j, err := scanLabelJob(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get label job: %w", err)
	}
	return j, nil
}

// ClaimNextQueued atomically transitions the oldest queued job to rendering
// and returns it. Returns (nil, nil) on an empty queue.
func (o *JobOperations) ClaimNextQueued(ctx context.Context) (*LabelJob, error) {
	row := GetDB().QueryRowContext(ctx, ClaimOldestQueuedJob)
	j, err := scanLabelJob(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim queued job: %w", err)
	}
	return j, nil
}

func (o *JobOperations) UpdateStatus(ctx context.Context, id int64, status, errMsg string) error {
	_, err := GetDB().ExecContext(ctx, UpdateLabelJobStatus, status, errMsg, id)
	if err != nil {
		return fmt.Errorf("failed to update label job status: %w", err)
	}
	return nil
}

func (o *JobOperations) Complete(ctx context.Context, id int64, status, errMsg, outputPath string) error {
	_, err := GetDB().ExecContext(ctx, CompleteLabelJob, status, errMsg, outputPath, id)
	if err != nil {
		return fmt.Errorf("failed to complete label job: %w", err)
	}
	return nil
}

func (o *JobOperations) Retry(ctx context.Context, id int64) error {
	result, err := GetDB().ExecContext(ctx, RetryLabelJob, id)
	if err != nil {
		return fmt.Errorf("failed to retry label job: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("only failed jobs can be retried")
	}
	return nil
}

func (o *JobOperations) Cancel(ctx context.Context, id int64) error {
	result, err := GetDB().ExecContext(ctx, CancelLabelJob, id)
	if err != nil {
		return fmt.Errorf("failed to cancel label job: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("job cannot be cancelled (not queued or rendering)")
	}
	return nil
}

func (o *JobOperations) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := GetDB().QueryContext(ctx, CountLabelJobsByStatus)
	if err != nil {
		return nil, fmt.Errorf("failed to count label jobs: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan job count: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

func (o *JobOperations) CountCreatedSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := GetDB().QueryRowContext(ctx, CountLabelJobsSince, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count label jobs: %w", err)
	}
	return n, nil
}

// PurgeTerminal deletes completed, cancelled and failed jobs created before
// the cutoff. Retention sweep; the dispatcher calls this periodically.
func (o *JobOperations) PurgeTerminal(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := GetDB().ExecContext(ctx, PurgeTerminalLabelJobs, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge label jobs: %w", err)
	}
	return result.RowsAffected()
}

func (o *JobOperations) ListJobs(ctx context.Context, filter JobFilter) ([]*LabelJob, error) {
	query := `
		SELECT id, source_type, source_id, profile_id, requested_by, copies, payload_json, status, error_message, output_path, created_at, started_at, completed_at
		FROM label_jobs`
	var where []string
	var args []any
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.ProfileID != 0 {
		where = append(where, "profile_id = ?")
		args = append(args, filter.ProfileID)
	}
	if filter.FromDate != nil {
		where = append(where, "created_at >= ?")
		args = append(args, filter.FromDate)
	}
	if filter.ToDate != nil {
		where = append(where, "created_at <= ?")
		args = append(args, filter.ToDate)
	}
	for i, w := range where {
		if i == 0 {
			query += " WHERE " + w
		} else {
			query += " AND " + w
		}
	}
	query += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, filter.Offset)

	rows, err := GetDB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list label jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*LabelJob
	for rows.Next() {
		j, err := scanLabelJob(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan label job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

type OrderOperations struct{}

func (o *OrderOperations) GetOrderByID(ctx context.Context, id string) (*Order, error) {
	ord := &Order{}
	var total string
	var expectedDelivery sql.NullTime
	err := GetDB().QueryRowContext(ctx, GetOrderByID, id).Scan(
		&ord.ID, &ord.Number, &ord.VendorID, &ord.CustomerName, &ord.CustomerEmail,
		&total, &ord.ShippingAddress, &expectedDelivery, &ord.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	ord.Total, err = decimal.NewFromString(total)
	if err != nil {
		return nil, fmt.Errorf("failed to parse order total: %w", err)
	}
	if expectedDelivery.Valid {
		ord.ExpectedDelivery = &expectedDelivery.Time
	}

	items, err := o.ListOrderItems(ctx, id)
	if err != nil {
		return nil, err
	}
	ord.Items = items

	return ord, nil
}

func (o *OrderOperations) ListOrderItems(ctx context.Context, orderID string) ([]*OrderItem, error) {
	rows, err := GetDB().QueryContext(ctx, ListOrderItems, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list order items: %w", err)
	}
	defer rows.Close()

	var items []*OrderItem
	for rows.Next() {
		item := &OrderItem{}
		var variantID sql.NullString
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &variantID, &item.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		if variantID.Valid {
			item.VariantID = variantID.String
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

type ProductOperations struct{}

func (o *ProductOperations) GetProductByID(ctx context.Context, id string) (*Product, error) {
	p := &Product{}
	var profileID sql.NullInt64
	err := GetDB().QueryRowContext(ctx, GetProductByID, id).Scan(
		&p.ID, &p.VendorID, &p.Name, &p.Tags, &profileID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	if profileID.Valid {
		p.LabelProfileID = &profileID.Int64
	}
	return p, nil
}

func (o *ProductOperations) GetVariantByID(ctx context.Context, id string) (*Variant, error) {
	v := &Variant{}
	var profileID sql.NullInt64
	err := GetDB().QueryRowContext(ctx, GetVariantByID, id).Scan(
		&v.ID, &v.ProductID, &v.Name, &profileID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get variant: %w", err)
	}
	if profileID.Valid {
		v.LabelProfileID = &profileID.Int64
	}
	return v, nil
}

type WebhookOperations struct{}

func (o *WebhookOperations) CreateWebhook(ctx context.Context, w *Webhook) error {
	result, err := GetDB().ExecContext(ctx, InsertWebhook,
		w.Name, w.URL, w.Secret, w.EventsJSON, w.Enabled)
	if err != nil {
		return fmt.Errorf("failed to create webhook: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get webhook id: %w", err)
	}
	w.ID = id
	return nil
}

func scanWebhook(scan func(dest ...any) error) (*Webhook, error) {
	w := &Webhook{}
	err := scan(&w.ID, &w.Name, &w.URL, &w.Secret, &w.EventsJSON, &w.Enabled, &w.CreatedAt)
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (o *WebhookOperations) GetWebhookByID(ctx context.Context, id int64) (*Webhook, error) {
	row := GetDB().QueryRowContext(ctx, GetWebhookByID, id)
	w, err := scanWebhook(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get webhook: %w", err)
	}
	return w, nil
}

func (o *WebhookOperations) ListWebhooks(ctx context.Context) ([]*Webhook, error) {
	return o.listWebhooks(ctx, ListWebhooks)
}

func (o *WebhookOperations) ListEnabledWebhooks(ctx context.Context) ([]*Webhook, error) {
	return o.listWebhooks(ctx, ListEnabledWebhooks)
}

func (o *WebhookOperations) listWebhooks(ctx context.Context, query string) ([]*Webhook, error) {
	rows, err := GetDB().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhooks: %w", err)
	}
	defer rows.Close()

	var webhooks []*Webhook
	for rows.Next() {
		w, err := scanWebhook(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan webhook: %w", err)
		}
		webhooks = append(webhooks, w)
	}
	return webhooks, rows.Err()
}

func (o *WebhookOperations) UpdateWebhook(ctx context.Context, w *Webhook) error {
	_, err := GetDB().ExecContext(ctx, UpdateWebhook,
		w.Name, w.URL, w.Secret, w.EventsJSON, w.Enabled, w.ID)
	if err != nil {
		return fmt.Errorf("failed to update webhook: %w", err)
	}
	return nil
}

func (o *WebhookOperations) DeleteWebhook(ctx context.Context, id int64) error {
	_, err := GetDB().ExecContext(ctx, DeleteWebhook, id)
	if err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}
	return nil
}

type SettingsOperations struct{}

func (o *SettingsOperations) GetSetting(ctx context.Context, key string) (*Setting, error) {
	s := &Setting{}
	err := GetDB().QueryRowContext(ctx, GetSettingByKey, key).Scan(
		&s.Key, &s.Value, &s.Encrypted, &s.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get setting: %w", err)
	}
	return s, nil
}

func (o *SettingsOperations) SetSetting(ctx context.Context, key, value string, encrypted bool) error {
	_, err := GetDB().ExecContext(ctx, UpsertSetting, key, value, encrypted)
	if err != nil {
		return fmt.Errorf("failed to set setting: %w", err)
	}
	return nil
}

var (
	Printers  = &PrinterOperations{}
	Templates = &TemplateOperations{}
	Profiles  = &ProfileOperations{}
	Jobs      = &JobOperations{}
	Orders    = &OrderOperations{}
	Products  = &ProductOperations{}
	Webhooks  = &WebhookOperations{}
	Settings  = &SettingsOperations{}
)
