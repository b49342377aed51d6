package email

// BaseTemplate is the layout every message is rendered into
const BaseTemplate = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <style>
        body {
            margin: 0;
            padding: 0;
            font-family: Georgia, 'Times New Roman', serif;
            background-color: #f7f3ee;
            color: #1c1c1c;
        }
        .container {
            max-width: 600px;
            margin: 0 auto;
            padding: 40px 20px;
        }
        .card {
            background: #ffffff;
            border-radius: 4px;
            padding: 32px;
            border: 1px solid #e6dccf;
        }
        .logo {
            text-align: center;
            letter-spacing: 6px;
            margin-bottom: 24px;
        }
        h2 {
            font-size: 22px;
            margin: 0 0 16px;
        }
        p {
            color: #4a4a4a;
            font-size: 16px;
            line-height: 1.6;
            margin: 0 0 16px;
        }
        .code {
            display: inline-block;
            font-family: 'Courier New', monospace;
            font-size: 24px;
            letter-spacing: 4px;
            border: 1px dashed #b08d57;
            padding: 12px 24px;
            margin: 8px 0 16px;
        }
        .btn {
            display: inline-block;
            background: #1c1c1c;
            color: #ffffff !important;
            text-decoration: none;
            padding: 14px 28px;
            font-size: 15px;
            margin: 16px 0;
        }
        .footer {
            text-align: center;
            margin-top: 32px;
            color: #8a8a8a;
            font-size: 12px;
        }
    </style>
</head>
<body>
    <div class="container">
        <div class="card">
            <div class="logo"><h1>OPULENCE</h1></div>
            {{.Content}}
        </div>
        <div class="footer">
            <p>You are receiving this email because you have an Opulence account.</p>
        </div>
    </div>
</body>
</html>
`

// CouponPromotionTemplate announces a coupon code to a customer
const CouponPromotionTemplate = `
<h2>A little something for you{{if .Name}}, {{.Name}}{{end}}</h2>
<p>Use the code below at checkout to get <strong>{{.DiscountText}}</strong>.</p>
<div class="code">{{.Code}}</div>
{{if .MinOrder}}<p>Valid on orders of {{.MinOrder}} or more.</p>{{end}}
<p>Offer ends {{.ValidUntil}}. One use per customer.</p>
<a href="{{.ShopURL}}" class="btn">Shop now</a>
`

// CouponPromotionData fills CouponPromotionTemplate
type CouponPromotionData struct {
	Name         string
	DiscountText string
	Code         string
	MinOrder     string
	ValidUntil   string
	ShopURL      string
}
