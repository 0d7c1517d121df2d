package db

func allMigrations() []Migration {
	return []Migration{
		{
			Version: "001_printers",
			SQL: `
				CREATE TABLE printers (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					vendor_id TEXT NOT NULL DEFAULT '',
					name TEXT NOT NULL,
					engine TEXT NOT NULL,
					ip_address TEXT NOT NULL DEFAULT '',
					port INTEGER NOT NULL DEFAULT 9100,
					dpi INTEGER NOT NULL DEFAULT 203,
					max_width_in REAL NOT NULL,
					max_height_in REAL NOT NULL,
					media_json TEXT NOT NULL DEFAULT '[]',
					status TEXT NOT NULL DEFAULT 'active',
					last_seen_at DATETIME,
					total_prints INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				);
				CREATE INDEX idx_printers_status ON printers(status);
				CREATE INDEX idx_printers_vendor ON printers(vendor_id);
			`,
		},
		{
			Version: "002_templates",
			SQL: `
				CREATE TABLE templates (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT NOT NULL,
					version INTEGER NOT NULL DEFAULT 1,
					description TEXT NOT NULL DEFAULT '',
					schema_json TEXT NOT NULL,
					width_in REAL NOT NULL,
					height_in REAL NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					UNIQUE(name, version)
				);
			`,
		},
		{
			Version: "003_label_profiles",
			SQL: `
				CREATE TABLE label_profiles (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					vendor_id TEXT NOT NULL DEFAULT '',
					name TEXT NOT NULL,
					template_id INTEGER NOT NULL REFERENCES templates(id),
					engine TEXT NOT NULL,
					width_in REAL NOT NULL,
					height_in REAL NOT NULL,
					orientation TEXT NOT NULL DEFAULT 'portrait',
					copies INTEGER NOT NULL DEFAULT 1,
					is_system_default INTEGER NOT NULL DEFAULT 0,
					is_system_shipping INTEGER NOT NULL DEFAULT 0,
					status TEXT NOT NULL DEFAULT 'draft',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				);
				CREATE INDEX idx_profiles_vendor ON label_profiles(vendor_id);
				CREATE INDEX idx_profiles_status ON label_profiles(status);
			`,
		},
		{
			Version: "004_label_jobs",
			SQL: `
				CREATE TABLE label_jobs (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					source_type TEXT NOT NULL,
					source_id TEXT NOT NULL,
					profile_id INTEGER NOT NULL REFERENCES label_profiles(id),
					requested_by TEXT NOT NULL DEFAULT '',
					copies INTEGER NOT NULL DEFAULT 1,
					payload_json TEXT NOT NULL DEFAULT '',
					status TEXT NOT NULL DEFAULT 'queued',
					error_message TEXT NOT NULL DEFAULT '',
					output_path TEXT NOT NULL DEFAULT '',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					started_at DATETIME,
					completed_at DATETIME
				);
				CREATE INDEX idx_label_jobs_status ON label_jobs(status, created_at);
			`,
		},
		{
			Version: "005_marketplace",
			SQL: `
				CREATE TABLE orders (
					id TEXT PRIMARY KEY,
					number TEXT NOT NULL,
					vendor_id TEXT NOT NULL DEFAULT '',
					customer_name TEXT NOT NULL DEFAULT '',
					customer_email TEXT NOT NULL DEFAULT '',
					total TEXT NOT NULL DEFAULT '0',
					shipping_address TEXT NOT NULL DEFAULT '',
					expected_delivery DATETIME,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				);
				CREATE TABLE products (
					id TEXT PRIMARY KEY,
					vendor_id TEXT NOT NULL DEFAULT '',
					name TEXT NOT NULL,
					tags TEXT NOT NULL DEFAULT '',
					label_profile_id INTEGER REFERENCES label_profiles(id)
				);
				CREATE TABLE variants (
					id TEXT PRIMARY KEY,
					product_id TEXT NOT NULL REFERENCES products(id),
					name TEXT NOT NULL DEFAULT '',
					label_profile_id INTEGER REFERENCES label_profiles(id)
				);
				CREATE TABLE order_items (
					id TEXT PRIMARY KEY,
					order_id TEXT NOT NULL REFERENCES orders(id),
					product_id TEXT NOT NULL REFERENCES products(id),
					variant_id TEXT REFERENCES variants(id),
					quantity INTEGER NOT NULL DEFAULT 1
				);
				CREATE INDEX idx_order_items_order ON order_items(order_id);
			`,
		},
		{
			Version: "006_webhooks_settings",
			SQL: `
				CREATE TABLE webhooks (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT NOT NULL,
					url TEXT NOT NULL,
					secret TEXT NOT NULL DEFAULT '',
					events_json TEXT NOT NULL DEFAULT '[]',
					enabled INTEGER NOT NULL DEFAULT 1,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				);
				CREATE TABLE settings (
					key TEXT PRIMARY KEY,
					value TEXT NOT NULL,
					encrypted INTEGER NOT NULL DEFAULT 0,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				);
			`,
		},
	}
}
