package apperrors

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrNoWorkbooks     = errors.New("no workbooks to analyze")
	ErrNoFilesUploaded = errors.New("no workbook files uploaded")
)
