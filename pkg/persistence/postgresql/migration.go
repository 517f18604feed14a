package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Journeys and their immutable versions
			CREATE TABLE journeys (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				workspace_id VARCHAR(255) NOT NULL DEFAULT '',
				status VARCHAR(50) NOT NULL CHECK (status IN ('draft', 'active', 'paused')),
				published_version INT,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_journeys_status ON journeys(status);

			CREATE TABLE journey_versions (
				journey_id VARCHAR(255) NOT NULL REFERENCES journeys(id) ON DELETE CASCADE,
				version INT NOT NULL CHECK (version >= 1),
				status VARCHAR(50) NOT NULL CHECK (status IN ('draft', 'published')),
				schema JSONB NOT NULL DEFAULT '{}',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				published_at TIMESTAMP WITH TIME ZONE,
				PRIMARY KEY (journey_id, version)
			);
		`,
		2: `
			-- Continuations persisted at wait nodes
			CREATE TABLE journey_tasks (
				id VARCHAR(255) PRIMARY KEY,
				journey_id VARCHAR(255) NOT NULL,
				version INT NOT NULL,
				user_id VARCHAR(255) NOT NULL,
				resume_node_id VARCHAR(255) NOT NULL,
				context JSONB NOT NULL DEFAULT '{}',
				run_at TIMESTAMP WITH TIME ZONE NOT NULL,
				status VARCHAR(50) NOT NULL CHECK (status IN ('pending', 'running', 'completed', 'failed')),
				last_error TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_journey_tasks_due ON journey_tasks(status, run_at);
			CREATE INDEX idx_journey_tasks_user_id ON journey_tasks(user_id);

			-- One row per dispatched action
			CREATE TABLE engagement_deliveries (
				id VARCHAR(255) PRIMARY KEY,
				user_id VARCHAR(255) NOT NULL,
				rule_id VARCHAR(255) NOT NULL,
				template_id VARCHAR(255) NOT NULL,
				channel VARCHAR(50) NOT NULL,
				delivery_context JSONB NOT NULL DEFAULT '{}',
				rendered_content JSONB NOT NULL DEFAULT '{}',
				delivery_status VARCHAR(50) NOT NULL CHECK (delivery_status IN ('pending', 'delivered', 'failed')),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_engagement_deliveries_user_id ON engagement_deliveries(user_id, created_at DESC);
		`,
		3: `
			-- Read-only facts produced outside the engine
			CREATE TABLE user_profiles (
				id VARCHAR(255) PRIMARY KEY,
				user_id VARCHAR(255) NOT NULL,
				analyzed_at TIMESTAMP WITH TIME ZONE NOT NULL,
				attributes JSONB NOT NULL DEFAULT '{}'
			);

			CREATE INDEX idx_user_profiles_latest ON user_profiles(user_id, analyzed_at DESC);

			CREATE TABLE user_events (
				id VARCHAR(255) PRIMARY KEY,
				user_id VARCHAR(255) NOT NULL,
				event_type VARCHAR(255) NOT NULL,
				session_id VARCHAR(255) NOT NULL DEFAULT '',
				properties JSONB NOT NULL DEFAULT '{}',
				occurred_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_user_events_recent ON user_events(user_id, event_type, occurred_at DESC);
		`,
	}
}
