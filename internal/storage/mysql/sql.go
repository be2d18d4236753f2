package mysql

const upsertLocationSQL = `
INSERT INTO platform_locations
  (internal_id, platform, external_id, name, address, lat, lon, rating, review_count,
   price_level, phone, website, web_url, categories, opening_hours, raw)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  external_id   = VALUES(external_id),
  name          = VALUES(name),
  address       = VALUES(address),
  lat           = VALUES(lat),
  lon           = VALUES(lon),
  rating        = VALUES(rating),
  review_count  = VALUES(review_count),
  price_level   = VALUES(price_level),
  phone         = VALUES(phone),
  website       = VALUES(website),
  web_url       = VALUES(web_url),
  categories    = VALUES(categories),
  opening_hours = VALUES(opening_hours),
  raw           = VALUES(raw),
  synced_at     = CURRENT_TIMESTAMP
`

// Note: `text` is reserved; keep it quoted everywhere.
const insertReviewsPrefix = "INSERT INTO platform_reviews\n  (internal_id, platform, source_id, author, rating, lang, title, `text`, published_at, raw)\nVALUES "

// COALESCE keeps the stored value when a later payload omits a field.
const insertReviewsOnDup = " ON DUPLICATE KEY UPDATE\n" +
	"  author       = COALESCE(VALUES(author), platform_reviews.author),\n" +
	"  rating       = COALESCE(VALUES(rating), platform_reviews.rating),\n" +
	"  lang         = COALESCE(VALUES(lang), platform_reviews.lang),\n" +
	"  title        = COALESCE(VALUES(title), platform_reviews.title),\n" +
	"  `text`       = COALESCE(VALUES(`text`), platform_reviews.`text`),\n" +
	"  published_at = COALESCE(VALUES(published_at), platform_reviews.published_at),\n" +
	"  raw          = COALESCE(VALUES(raw), platform_reviews.raw)\n"

const insertPhotosPrefix = "INSERT INTO platform_photos\n  (internal_id, platform, source_id, url, caption, width, height)\nVALUES "

const insertPhotosOnDup = " ON DUPLICATE KEY UPDATE\n" +
	"  url     = VALUES(url),\n" +
	"  caption = COALESCE(VALUES(caption), platform_photos.caption),\n" +
	"  width   = VALUES(width),\n" +
	"  height  = VALUES(height)\n"

const insertSyncLogSQL = `
INSERT INTO sync_log
  (run_id, internal_id, platform, external_id, success, error, reviews, photos, duration_ms)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// -----------------------------------------------------------------------------
// READ QUERIES
// -----------------------------------------------------------------------------

const syncCountersSQL = `
SELECT
  platform,
  COUNT(*)                                          AS attempts,
  COALESCE(SUM(success), 0)                         AS successes,
  COALESCE(SUM(NOT success), 0)                     AS failures,
  MAX(CASE WHEN success THEN created_at END)        AS last_sync
FROM sync_log
GROUP BY platform
`

const getLocationSQL = `
SELECT external_id, name, address, lat, lon, rating, review_count, price_level,
       phone, website, web_url, categories, opening_hours
FROM platform_locations
WHERE internal_id = ? AND platform = ?
`

const listReviewsSQL = "SELECT source_id, author, rating, lang, title, `text`, published_at\n" +
	"FROM platform_reviews\n" +
	"WHERE internal_id = ? AND platform = ?\n" +
	"ORDER BY published_at DESC, id DESC\n"

const listPhotosSQL = `
SELECT source_id, url, caption, width, height
FROM platform_photos
WHERE internal_id = ? AND platform = ?
ORDER BY id
`
