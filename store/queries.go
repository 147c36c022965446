package store

func QueryLatestVersionForParent() string {
	return `
SELECT		pi.*
FROM		project_items pi
WHERE		pi.parent_path = ?
AND			pi.category = ?
ORDER BY	pi.file_modified_at DESC,
			pi.path DESC -- timestamped file names break ties
LIMIT		1
`
}

func QuerySubprojectsForSource() string {
	return `
SELECT		pi.*
FROM		project_items pi
WHERE		pi.category = ?
AND			pi.source_document_name = ?
AND			pi.source_track_id IS NOT NULL
ORDER BY	pi.extracted_at,
			pi.path -- latest extraction last so it wins
`
}

func QueryCategoryCounts() string {
	return `
SELECT		pi.category,
			COUNT(*) count
FROM		project_items pi
WHERE		pi.project_path = ?
GROUP BY	pi.category
ORDER BY	pi.category -- for deterministic result order
`
}
