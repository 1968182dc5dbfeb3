package mysql

// -----------------------------------------------------------------------------
// SUBJECTS
// -----------------------------------------------------------------------------

const getSubjectSQL = `
SELECT project_id, property_type, address, postal_code, city, latitude, longitude
FROM subjects
WHERE project_id = ?
`

// Coordinates are written once: the predicate keeps a concurrent second
// geocoding from overwriting an earlier result.
const setSubjectCoordsSQL = `
UPDATE subjects
SET latitude = ?, longitude = ?
WHERE project_id = ? AND latitude IS NULL AND longitude IS NULL
`

const upsertSubjectSQL = `
INSERT INTO subjects (project_id, property_type, address, postal_code, city, latitude, longitude)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  property_type = VALUES(property_type),
  address       = VALUES(address),
  postal_code   = VALUES(postal_code),
  city          = VALUES(city)
`

// -----------------------------------------------------------------------------
// COMPARABLE POOL
// -----------------------------------------------------------------------------

const poolColumns = `
  id, address, postal_code, city, latitude, longitude, property_type,
  surface, construction_year, transaction_type, price, price_per_m2,
  transaction_date, source, status, source_reference, photo_url`

const getPoolEntrySQL = `SELECT` + poolColumns + `
FROM comparable_pool
WHERE id = ?
`

// searchPoolPrefix narrows by type and bounding box; optional attribute
// filters are appended dynamically. The box rides the (property_type,
// latitude, longitude) index; exact geodesic refinement happens in the
// application layer.
const searchPoolPrefix = `SELECT` + poolColumns + `
FROM comparable_pool
WHERE property_type = ?
  AND latitude BETWEEN ? AND ?
  AND longitude BETWEEN ? AND ?`

const insertPoolEntrySQL = `
INSERT INTO comparable_pool
  (address, postal_code, city, latitude, longitude, property_type, surface,
   construction_year, transaction_type, price, price_per_m2, transaction_date,
   source, status, source_reference, photo_url)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// -----------------------------------------------------------------------------
// SELECTED COMPARABLES
// -----------------------------------------------------------------------------

const selectedColumns = `
  id, project_id, pool_entry_id, address, postal_code, city, latitude, longitude,
  surface, construction_year, price, price_per_m2, price_basis, transaction_type,
  transaction_date, adjustment, adjusted_price_per_m2, validated, validation_notes,
  distance_km`

const listSelectedSQL = `SELECT` + selectedColumns + `
FROM selected_comparables
WHERE project_id = ?
ORDER BY id
`

const getSelectedSQL = `SELECT` + selectedColumns + `
FROM selected_comparables
WHERE project_id = ? AND id = ?
`

const findSelectedByPoolSQL = `SELECT` + selectedColumns + `
FROM selected_comparables
WHERE project_id = ? AND pool_entry_id = ?
`

// countSelectedForUpdateSQL serializes concurrent selections on the same
// project so the cap check and the insert are one atomic step.
const countSelectedForUpdateSQL = `
SELECT COUNT(*) FROM selected_comparables WHERE project_id = ? FOR UPDATE
`

const insertSelectedSQL = `
INSERT INTO selected_comparables
  (project_id, pool_entry_id, address, postal_code, city, latitude, longitude,
   surface, construction_year, price, price_per_m2, price_basis, transaction_type,
   transaction_date, adjustment, adjusted_price_per_m2, validated, validation_notes,
   distance_km)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const updateSelectedSQL = `
UPDATE selected_comparables
SET surface = ?, construction_year = ?, price = ?, price_per_m2 = ?,
    price_basis = ?, adjustment = ?, adjusted_price_per_m2 = ?,
    validated = ?, validation_notes = ?
WHERE project_id = ? AND id = ?
`

const deleteSelectedSQL = `
DELETE FROM selected_comparables WHERE project_id = ? AND id = ?
`

const countValidatedSQL = `
SELECT COUNT(*) FROM selected_comparables WHERE project_id = ? AND validated = 1
`
