package domain

import "encoding/json"

// Price is one daily OHLCV bar.
type Price struct {
	Open   float64 `json:"open"`
	Close  float64 `json:"close"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Volume int64   `json:"volume"`
	Time   string  `json:"time"`
}

// PriceResponse is the remote envelope for prices.
type PriceResponse struct {
	Ticker string  `json:"ticker"`
	Prices []Price `json:"prices"`
}

// FinancialMetrics holds valuation, profitability and leverage ratios for one
// reporting period. Every ratio is optional because coverage varies by issuer.
type FinancialMetrics struct {
	Ticker                    string   `json:"ticker"`
	ReportPeriod              string   `json:"report_period"`
	Period                    string   `json:"period"`
	Currency                  string   `json:"currency"`
	MarketCap                 *float64 `json:"market_cap"`
	EnterpriseValue           *float64 `json:"enterprise_value"`
	PriceToEarningsRatio      *float64 `json:"price_to_earnings_ratio"`
	PriceToBookRatio          *float64 `json:"price_to_book_ratio"`
	PriceToSalesRatio         *float64 `json:"price_to_sales_ratio"`
	EnterpriseValueToEBITDA   *float64 `json:"enterprise_value_to_ebitda_ratio"`
	FreeCashFlowYield         *float64 `json:"free_cash_flow_yield"`
	PEGRatio                  *float64 `json:"peg_ratio"`
	GrossMargin               *float64 `json:"gross_margin"`
	OperatingMargin           *float64 `json:"operating_margin"`
	NetMargin                 *float64 `json:"net_margin"`
	ReturnOnEquity            *float64 `json:"return_on_equity"`
	ReturnOnAssets            *float64 `json:"return_on_assets"`
	ReturnOnInvestedCapital   *float64 `json:"return_on_invested_capital"`
	CurrentRatio              *float64 `json:"current_ratio"`
	DebtToEquity              *float64 `json:"debt_to_equity"`
	RevenueGrowth             *float64 `json:"revenue_growth"`
	EarningsGrowth            *float64 `json:"earnings_growth"`
	EarningsPerShare          *float64 `json:"earnings_per_share"`
	BookValuePerShare         *float64 `json:"book_value_per_share"`
	FreeCashFlowPerShare      *float64 `json:"free_cash_flow_per_share"`
	PayoutRatio               *float64 `json:"payout_ratio"`
	InterestCoverage          *float64 `json:"interest_coverage"`
	OperatingCashFlowRatio    *float64 `json:"operating_cash_flow_ratio"`
	AssetTurnover             *float64 `json:"asset_turnover"`
	InventoryTurnover         *float64 `json:"inventory_turnover"`
	ReceivablesTurnover       *float64 `json:"receivables_turnover"`
	DaysSalesOutstanding      *float64 `json:"days_sales_outstanding"`
	OperatingCycle            *float64 `json:"operating_cycle"`
	WorkingCapitalTurnover    *float64 `json:"working_capital_turnover"`
	QuickRatio                *float64 `json:"quick_ratio"`
	CashRatio                 *float64 `json:"cash_ratio"`
	DebtToAssets              *float64 `json:"debt_to_assets"`
	BookValueGrowth           *float64 `json:"book_value_growth"`
	EarningsPerShareGrowth    *float64 `json:"earnings_per_share_growth"`
	FreeCashFlowGrowth        *float64 `json:"free_cash_flow_growth"`
	OperatingIncomeGrowth     *float64 `json:"operating_income_growth"`
	EBITDAGrowth              *float64 `json:"ebitda_growth"`
	PriceToFreeCashFlowsRatio *float64 `json:"price_to_free_cash_flows_ratio,omitempty"`
}

// FinancialMetricsResponse is the remote envelope for metrics.
type FinancialMetricsResponse struct {
	FinancialMetrics []FinancialMetrics `json:"financial_metrics"`
}

// LineItem is one statement row set. Besides the fixed identifying fields,
// the remote returns one numeric field per requested line item.
type LineItem struct {
	Ticker       string
	ReportPeriod string
	Period       string
	Currency     string
	Values       map[string]*float64
}

var lineItemFixed = map[string]bool{"ticker": true, "report_period": true, "period": true, "currency": true}

// MarshalJSON flattens Values next to the fixed fields.
func (l LineItem) MarshalJSON() ([]byte, error) {
	m := make(map[string]interface{}, len(l.Values)+4)
	for k, v := range l.Values {
		m[k] = v
	}
	m["ticker"] = l.Ticker
	m["report_period"] = l.ReportPeriod
	m["period"] = l.Period
	m["currency"] = l.Currency
	return json.Marshal(m)
}

// UnmarshalJSON collects every non-fixed numeric field into Values.
func (l *LineItem) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var fixed struct {
		Ticker       string `json:"ticker"`
		ReportPeriod string `json:"report_period"`
		Period       string `json:"period"`
		Currency     string `json:"currency"`
	}
	if err := json.Unmarshal(data, &fixed); err != nil {
		return err
	}
	l.Ticker = fixed.Ticker
	l.ReportPeriod = fixed.ReportPeriod
	l.Period = fixed.Period
	l.Currency = fixed.Currency
	l.Values = make(map[string]*float64, len(raw))
	for k, v := range raw {
		if lineItemFixed[k] {
			continue
		}
		var f *float64
		if err := json.Unmarshal(v, &f); err != nil {
			// Non-numeric extras are not line items.
			continue
		}
		l.Values[k] = f
	}
	return nil
}

// LineItemResponse is the remote envelope for a line item search.
type LineItemResponse struct {
	SearchResults []LineItem `json:"search_results"`
}

// InsiderTrade is one reported insider transaction.
type InsiderTrade struct {
	Ticker                       string   `json:"ticker"`
	Issuer                       *string  `json:"issuer"`
	Name                         *string  `json:"name"`
	Title                        *string  `json:"title"`
	IsBoardDirector              *bool    `json:"is_board_director"`
	TransactionDate              *string  `json:"transaction_date"`
	TransactionShares            *float64 `json:"transaction_shares"`
	TransactionPricePerShare     *float64 `json:"transaction_price_per_share"`
	TransactionValue             *float64 `json:"transaction_value"`
	SharesOwnedBeforeTransaction *float64 `json:"shares_owned_before_transaction"`
	SharesOwnedAfterTransaction  *float64 `json:"shares_owned_after_transaction"`
	SecurityTitle                *string  `json:"security_title"`
	FilingDate                   string   `json:"filing_date"`
}

// InsiderTradeResponse is the remote envelope for insider trades.
type InsiderTradeResponse struct {
	InsiderTrades []InsiderTrade `json:"insider_trades"`
}

// CompanyNews is one news article about a company.
type CompanyNews struct {
	Ticker    string  `json:"ticker"`
	Title     string  `json:"title"`
	Author    string  `json:"author"`
	Source    string  `json:"source"`
	Date      string  `json:"date"`
	URL       string  `json:"url"`
	Sentiment *string `json:"sentiment,omitempty"`
}

// CompanyNewsResponse is the remote envelope for news.
type CompanyNewsResponse struct {
	News []CompanyNews `json:"news"`
}

// CompanyFacts is the static and current profile of a company.
type CompanyFacts struct {
	Ticker                string   `json:"ticker"`
	Name                  string   `json:"name"`
	CIK                   *string  `json:"cik,omitempty"`
	Industry              *string  `json:"industry,omitempty"`
	Sector                *string  `json:"sector,omitempty"`
	Category              *string  `json:"category,omitempty"`
	Exchange              *string  `json:"exchange,omitempty"`
	IsActive              *bool    `json:"is_active,omitempty"`
	ListingDate           *string  `json:"listing_date,omitempty"`
	Location              *string  `json:"location,omitempty"`
	MarketCap             *float64 `json:"market_cap,omitempty"`
	NumberOfEmployees     *int64   `json:"number_of_employees,omitempty"`
	SECFilingsURL         *string  `json:"sec_filings_url,omitempty"`
	SICCode               *string  `json:"sic_code,omitempty"`
	SICIndustry           *string  `json:"sic_industry,omitempty"`
	SICSector             *string  `json:"sic_sector,omitempty"`
	WebsiteURL            *string  `json:"website_url,omitempty"`
	WeightedAverageShares *int64   `json:"weighted_average_shares,omitempty"`
}

// CompanyFactsResponse is the remote envelope for company facts.
type CompanyFactsResponse struct {
	CompanyFacts CompanyFacts `json:"company_facts"`
}
