// Package exporter writes normalized payment ledgers as CSV.
//
// CSVWriter emits one header row of canonical field names in
// ledger.DisplayColumns order, followed by one row per record:
//
//	unit_name,work_order_no,order_amount,final_amount,payment_received,
//	pending_amount,payment_mode,work_status,p_date,payment_date,year
//
// Amounts are written exactly as held (decimal String form), payment dates as
// YYYY-MM-DD and absent optional fields as empty cells. An optional UTF-8 BOM
// helps spreadsheet programs detect the encoding.
//
// Example usage:
//
//	w := exporter.NewCSVWriter(cfg.Export, logger)
//	if err := w.Write(os.Stdout, table); err != nil {
//	    return err
//	}
//	path, err := w.WriteFile("", table) // exports/filtered_payment_data.csv
package exporter
