package report

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
)

// Sheet is one worksheet of a workbook export.
type Sheet struct {
	Name string
	Rows any
}

// maxSheetName is the Excel limit on worksheet names.
const maxSheetName = 31

// WriteWorkbook saves every sheet to an XLSX file at path. Numbers stay
// numeric; absent values are left blank.
func WriteWorkbook(path string, sheets []Sheet) error {
	f := xlsx.NewFile()
	for _, s := range sheets {
		t, err := flatten(s.Rows)
		if err != nil {
			return eris.Wrapf(err, "report: sheet %s", s.Name)
		}

		name := s.Name
		if len(name) > maxSheetName {
			name = name[:maxSheetName]
		}
		sheet, err := f.AddSheet(name)
		if err != nil {
			return eris.Wrapf(err, "report: add sheet %s", name)
		}

		head := sheet.AddRow()
		for _, h := range t.header {
			head.AddCell().SetString(h)
		}
		for _, r := range t.rows {
			row := sheet.AddRow()
			for _, v := range r {
				c := row.AddCell()
				switch x := v.(type) {
				case nil:
				case float64:
					c.SetFloat(x)
				case int64:
					c.SetInt64(x)
				case bool:
					c.SetBool(x)
				default:
					c.SetString(plain(x))
				}
			}
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "report: save %s", path)
	}
	zap.L().Info("report: wrote workbook", zap.String("path", path), zap.Int("sheets", len(sheets)))
	return nil
}
