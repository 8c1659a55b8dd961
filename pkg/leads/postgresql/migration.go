package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Lead documents. Filters run against doc; created_at mirrors doc->>'createdAt' for ordering.
			CREATE TABLE leads (
				id UUID PRIMARY KEY,
				email TEXT NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				doc JSONB NOT NULL
			);

			CREATE UNIQUE INDEX idx_leads_email ON leads (LOWER(email));
			CREATE INDEX idx_leads_created_at ON leads (created_at);
			CREATE INDEX idx_leads_status ON leads ((doc->>'status'));
			CREATE INDEX idx_leads_doc ON leads USING GIN (doc);
		`,
	}
}
