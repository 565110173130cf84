package kis

import "fmt"

// Credentials KIS API 인증 정보
type Credentials struct {
	AppKey    string
	AppSecret string
	AccountNo string // XXXXXXXX-XX 형식
}

// 해외주식 거래 ID (실전투자)
const (
	TrIDBuyReal     = "JTTT1002U" // 해외주식 매수
	TrIDSellReal    = "JTTT1006U" // 해외주식 매도
	TrIDBalanceReal = "JTTT3012R" // 해외주식 잔고조회
	TrIDBuyingPower = "JTTT3007R" // 해외주식 매수가능금액조회
)

// 거래소 코드
const (
	ExchangeNYSE   = "NYSE" // 뉴욕
	ExchangeNASDAQ = "NASD" // 나스닥
	ExchangeAMEX   = "AMEX" // 아멕스
)

// DefaultExchanges 잔고 합산 대상 거래소
var DefaultExchanges = []string{ExchangeNASDAQ, ExchangeNYSE}

// APIError rt_cd != "0" 응답
type APIError struct {
	TrID    string
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("kis %s: [%s] %s", e.TrID, e.Code, e.Message)
}

// apiStatus 모든 응답에 공통으로 붙는 결과 코드
type apiStatus struct {
	RtCd  string `json:"rt_cd"` // 성공: "0"
	MsgCd string `json:"msg_cd"`
	Msg1  string `json:"msg1"`
}

func (s apiStatus) check(trID string) error {
	if s.RtCd == "0" {
		return nil
	}
	return &APIError{TrID: trID, Code: s.MsgCd, Message: s.Msg1}
}

// tokenRequest 토큰 발급 요청
type tokenRequest struct {
	GrantType string `json:"grant_type"`
	AppKey    string `json:"appkey"`
	AppSecret string `json:"appsecret"`
}

// tokenResponse 토큰 발급 응답
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"` // 초 (86400 = 24시간)
}

// orderRequest 주문 요청
type orderRequest struct {
	CANO            string `json:"CANO"`            // 계좌번호 앞 8자리
	ACNT            string `json:"ACNT_PRDT_CD"`    // 계좌상품코드 (뒤 2자리)
	OVRS_EXCG_CD    string `json:"OVRS_EXCG_CD"`    // 해외거래소코드
	PDNO            string `json:"PDNO"`            // 종목코드
	ORD_QTY         string `json:"ORD_QTY"`         // 주문수량
	OVRS_ORD_UNPR   string `json:"OVRS_ORD_UNPR"`   // 주문단가 (시장가=0)
	ORD_SVR_DVSN_CD string `json:"ORD_SVR_DVSN_CD"` // 주문서버구분코드 ("0")
	ORD_DVSN        string `json:"ORD_DVSN"`        // 주문구분 ("00"=지정가, "01"=시장가)
}

// orderResponse 주문 응답
type orderResponse struct {
	apiStatus
	Output struct {
		ODNO  string `json:"ODNO"`    // 주문번호
		ORDTM string `json:"ORD_TMD"` // 주문시각
	} `json:"output"`
}

// balanceResponse 잔고 조회 응답
type balanceResponse struct {
	apiStatus
	Output1 []struct {
		OVRS_PDNO          string `json:"ovrs_pdno"`          // 종목코드
		OVRS_ITEM_NAME     string `json:"ovrs_item_name"`     // 종목명
		OVRS_EXCG_CD       string `json:"ovrs_excg_cd"`       // 거래소
		OVRS_CBLC_QTY      string `json:"ovrs_cblc_qty"`      // 보유수량
		PCHS_AVG_PRIC      string `json:"pchs_avg_pric"`      // 평균매입가
		OVRS_STCK_EVLU_AMT string `json:"ovrs_stck_evlu_amt"` // 평가금액
		NOW_PRIC2          string `json:"now_pric2"`          // 현재가
	} `json:"output1"`
	Output2 struct {
		FRCR_EVLU_AMT2 string `json:"frcr_evlu_amt2"` // 외화평가금액
	} `json:"output2"`
}

// buyingPowerResponse 매수가능금액 조회 응답
type buyingPowerResponse struct {
	apiStatus
	Output struct {
		ORD_PSBL_FRCR_AMT string `json:"ord_psbl_frcr_amt"` // 외화주문가능금액 (USD)
		EXRT              string `json:"exrt"`              // 환율
	} `json:"output"`
}
