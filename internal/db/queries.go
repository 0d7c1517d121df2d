package db

const (
	InsertPrinter = `
		INSERT INTO printers (vendor_id, name, engine, ip_address, port, dpi, max_width_in, max_height_in, media_json, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	GetPrinterByID = `
		SELECT id, vendor_id, name, engine, ip_address, port, dpi, max_width_in, max_height_in, media_json, status, last_seen_at, total_prints, created_at, updated_at
		FROM printers WHERE id = ?
	`

	ListPrinters = `
		SELECT id, vendor_id, name, engine, ip_address, port, dpi, max_width_in, max_height_in, media_json, status, last_seen_at, total_prints, created_at, updated_at
		FROM printers ORDER BY name ASC
	`

	ListPrintersByStatus = `
		SELECT id, vendor_id, name, engine, ip_address, port, dpi, max_width_in, max_height_in, media_json, status, last_seen_at, total_prints, created_at, updated_at
		FROM printers WHERE status = ? ORDER BY name ASC
	`

	UpdatePrinter = `
		UPDATE printers SET
			name = ?, engine = ?, ip_address = ?, port = ?, dpi = ?,
			max_width_in = ?, max_height_in = ?, media_json = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	UpdatePrinterStatus = `
		UPDATE printers SET status = ?, last_seen_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`

	IncrementPrinterPrints = `
		UPDATE printers SET total_prints = total_prints + ? WHERE id = ?
	`

	DeletePrinter = `DELETE FROM printers WHERE id = ?`
)

const (
	InsertTemplate = `
		INSERT INTO templates (name, version, description, schema_json, width_in, height_in)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	GetTemplateByID = `
		SELECT id, name, version, description, schema_json, width_in, height_in, created_at, updated_at
		FROM templates WHERE id = ?
	`

	GetLatestTemplateByName = `
		SELECT id, name, version, description, schema_json, width_in, height_in, created_at, updated_at
		FROM templates WHERE name = ? ORDER BY version DESC LIMIT 1
	`

	ListTemplates = `
		SELECT t.id, t.name, t.version, t.description, t.schema_json, t.width_in, t.height_in, t.created_at, t.updated_at
		FROM templates t
		INNER JOIN (SELECT name, MAX(version) AS version FROM templates GROUP BY name) latest
			ON t.name = latest.name AND t.version = latest.version
		ORDER BY t.name ASC
	`
)

const (
	InsertProfile = `
		INSERT INTO label_profiles (vendor_id, name, template_id, engine, width_in, height_in, orientation, copies, is_system_default, is_system_shipping, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	GetProfileByID = `
		SELECT id, vendor_id, name, template_id, engine, width_in, height_in, orientation, copies, is_system_default, is_system_shipping, status, created_at, updated_at
		FROM label_profiles WHERE id = ?
	`

	GetSystemDefaultProfile = `
		SELECT id, vendor_id, name, template_id, engine, width_in, height_in, orientation, copies, is_system_default, is_system_shipping, status, created_at, updated_at
		FROM label_profiles WHERE is_system_default = 1 AND status = 'active' LIMIT 1
	`

	GetShippingProfile = `
		SELECT id, vendor_id, name, template_id, engine, width_in, height_in, orientation, copies, is_system_default, is_system_shipping, status, created_at, updated_at
		FROM label_profiles
		WHERE status = 'active' AND (is_system_shipping = 1 OR LOWER(name) LIKE '%shipping%')
		ORDER BY is_system_shipping DESC LIMIT 1
	`

	ListProfiles = `
		SELECT id, vendor_id, name, template_id, engine, width_in, height_in, orientation, copies, is_system_default, is_system_shipping, status, created_at, updated_at
		FROM label_profiles ORDER BY name ASC
	`

	ListProfilesByVendor = `
		SELECT id, vendor_id, name, template_id, engine, width_in, height_in, orientation, copies, is_system_default, is_system_shipping, status, created_at, updated_at
		FROM label_profiles WHERE vendor_id = ? ORDER BY name ASC
	`

	UpdateProfile = `
		UPDATE label_profiles SET
			name = ?, template_id = ?, engine = ?, width_in = ?, height_in = ?,
			orientation = ?, copies = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	UpdateProfileStatus = `
		UPDATE label_profiles SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`

	DeleteProfile = `DELETE FROM label_profiles WHERE id = ?`
)

const (
	InsertLabelJob = `
		INSERT INTO label_jobs (source_type, source_id, profile_id, requested_by, copies, payload_json, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	GetLabelJobByID = `
		SELECT id, source_type, source_id, profile_id, requested_by, copies, payload_json, status, error_message, output_path, created_at, started_at, completed_at
		FROM label_jobs WHERE id = ?
	`

	// ClaimOldestQueuedJob is a conditional update so a second dispatcher
	// process would not pick up the same job. Single-process deployment is
	// the supported mode; the claim just keeps the door open.
	ClaimOldestQueuedJob = `
		UPDATE label_jobs SET status = 'rendering', started_at = CURRENT_TIMESTAMP
		WHERE id = (SELECT id FROM label_jobs WHERE status = 'queued' ORDER BY created_at ASC LIMIT 1)
			AND status = 'queued'
		RETURNING id, source_type, source_id, profile_id, requested_by, copies, payload_json, status, error_message, output_path, created_at, started_at, completed_at
	`

	UpdateLabelJobStatus = `
		UPDATE label_jobs SET status = ?, error_message = ? WHERE id = ?
	`

	CompleteLabelJob = `
		UPDATE label_jobs SET status = ?, error_message = ?, output_path = ?, completed_at = CURRENT_TIMESTAMP WHERE id = ?
	`

	RetryLabelJob = `
		UPDATE label_jobs
		SET status = 'queued', error_message = '', started_at = NULL, completed_at = NULL
		WHERE id = ? AND status = 'failed'
	`

	CancelLabelJob = `
		UPDATE label_jobs SET status = 'cancelled', completed_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status IN ('queued', 'rendering')
	`

	CountLabelJobsByStatus = `SELECT status, COUNT(*) FROM label_jobs GROUP BY status`

	CountLabelJobsSince = `SELECT COUNT(*) FROM label_jobs WHERE created_at >= ?`

	PurgeTerminalLabelJobs = `
		DELETE FROM label_jobs
		WHERE status IN ('completed', 'cancelled', 'failed') AND created_at < ?
	`
)

const (
	GetOrderByID = `
		SELECT id, number, vendor_id, customer_name, customer_email, total, shipping_address, expected_delivery, created_at
		FROM orders WHERE id = ?
	`

	ListOrderItems = `
		SELECT id, order_id, product_id, variant_id, quantity
		FROM order_items WHERE order_id = ? ORDER BY id ASC
	`

	GetProductByID = `
		SELECT id, vendor_id, name, tags, label_profile_id FROM products WHERE id = ?
	`

	GetVariantByID = `
		SELECT id, product_id, name, label_profile_id FROM variants WHERE id = ?
	`
)

const (
	InsertWebhook = `
		INSERT INTO webhooks (name, url, secret, events_json, enabled)
		VALUES (?, ?, ?, ?, ?)
	`

	GetWebhookByID = `
		SELECT id, name, url, secret, events_json, enabled, created_at FROM webhooks WHERE id = ?
	`

	ListWebhooks = `
		SELECT id, name, url, secret, events_json, enabled, created_at FROM webhooks ORDER BY id ASC
	`

	ListEnabledWebhooks = `
		SELECT id, name, url, secret, events_json, enabled, created_at FROM webhooks WHERE enabled = 1
	`

	UpdateWebhook = `
		UPDATE webhooks SET name = ?, url = ?, secret = ?, events_json = ?, enabled = ? WHERE id = ?
	`

	DeleteWebhook = `DELETE FROM webhooks WHERE id = ?`
)

const (
	GetSettingByKey = `SELECT key, value, encrypted, updated_at FROM settings WHERE key = ?`

	UpsertSetting = `
		INSERT INTO settings (key, value, encrypted, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, encrypted = excluded.encrypted, updated_at = CURRENT_TIMESTAMP
	`
)
