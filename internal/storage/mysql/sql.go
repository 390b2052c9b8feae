package mysql

// internal_id is deliberately not unique: re-imports append new rows.
const insertPOIsPrefix = "INSERT INTO points_of_interest\n  (internal_id, name, category, latitude, longitude, rating)\nVALUES "

const poiRowPlaceholders = "(?,?,?,?,?,?)"

const findByInternalIDSQL = `
SELECT external_id, internal_id, name, category, latitude, longitude, rating
FROM points_of_interest
WHERE internal_id = ?
ORDER BY external_id
`

const countPOIsSQL = `SELECT COUNT(*) FROM points_of_interest`
