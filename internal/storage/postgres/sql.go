package postgres

// listingColumns is the SELECT list shared by every read query.
const listingColumns = `
  id, title, description, price, bedrooms, bathrooms, area_sqft,
  property_type, location, latitude, longitude, features`

const getListingSQL = `
SELECT` + listingColumns + `
FROM listings
WHERE id = $1
`

const listMissingEmbeddingsSQL = `
SELECT` + listingColumns + `
FROM listings
WHERE embedding IS NULL
ORDER BY id
LIMIT $1
`

const updateEmbeddingSQL = `
UPDATE listings SET embedding = $1, updated_at = NOW() WHERE id = $2
`

const insertSearchLogSQL = `
INSERT INTO search_logs (query, filters, keywords, result_count, listing_ids, took_ms)
VALUES ($1, $2, $3, $4, $5, $6)
`

// schemaSQL bootstraps a fresh database. The vector dimension matches the
// embedding service's model output.
const schemaSQL = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS listings (
  id            BIGSERIAL PRIMARY KEY,
  title         TEXT NOT NULL,
  description   TEXT NOT NULL DEFAULT '',
  price         DOUBLE PRECISION,
  bedrooms      INT,
  bathrooms     INT,
  area_sqft     DOUBLE PRECISION,
  property_type TEXT NOT NULL DEFAULT '',
  location      TEXT,
  latitude      DOUBLE PRECISION,
  longitude     DOUBLE PRECISION,
  features      JSONB,
  embedding     vector(384),
  search_vector TSVECTOR GENERATED ALWAYS AS (
    to_tsvector('english', title || ' ' || description)
  ) STORED,
  created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS listings_search_idx ON listings USING GIN (search_vector);
CREATE INDEX IF NOT EXISTS listings_price_idx ON listings (price);

CREATE TABLE IF NOT EXISTS search_logs (
  id           BIGSERIAL PRIMARY KEY,
  query        TEXT NOT NULL,
  filters      JSONB,
  keywords     TEXT[],
  result_count INT NOT NULL,
  listing_ids  BIGINT[],
  took_ms      BIGINT NOT NULL,
  created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`
