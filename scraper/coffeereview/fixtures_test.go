package coffeereview

const modernReviewHTML = `<!DOCTYPE html>
<html>
<head><title>Ethiopia Guji Natural by Roaster A Review | Coffee Review</title></head>
<body>
<div class="entry-content">
<h1 class="review-title">Ethiopia Guji Natural</h1>
<span class="review-template-rating">94</span>
<table class="review-template-table">
<tr><td>Roaster:</td><td>Roaster A</td></tr>
<tr><td>Roaster Location:</td><td>Portland, Oregon</td></tr>
<tr><td>Coffee Origin:</td><td>Guji Zone, Ethiopia</td></tr>
<tr><td>Roast Level:</td><td>Medium-Light</td></tr>
<tr><td>Agtron:</td><td>58/76</td></tr>
<tr><td>Est. Price:</td><td>$18.00/12 ounces</td></tr>
</table>
<table class="review-template-table">
<tr><td>Review Date:</td><td>March 2021</td></tr>
<tr><td>Aroma:</td><td>9</td></tr>
<tr><td>Acidity/Structure:</td><td>8</td></tr>
<tr><td>Body:</td><td>9</td></tr>
<tr><td>Flavor:</td><td>9</td></tr>
<tr><td>Aftertaste:</td><td>8</td></tr>
</table>
<h2>Blind Assessment</h2>
<p>Richly sweet, floral. Blueberry, cocoa nib.</p>
<p>Roast Level: Medium-Light</p>
<h2>Notes</h2>
<p>Produced by smallholders in the Guji Zone.</p>
<h2>Bottom Line</h2>
<p>A juicy, fruit-forward natural.</p>
</div>
</body>
</html>`

const legacyReviewHTML = `<html>
<body>
<div class="post">
<p>93</p>
<p>Old Town Roasters</p>
<p>Kenya Nyeri Peaberry</p>
<p>Blind Assessment: Bright, juicy, black currant.</p>
<p>Notes: Grown in Nyeri.</p>
<p>Who Should Drink It: Lovers of bright coffees. $16.50/12 ounces</p>
</div>
</body>
</html>`

const leakedPriceHTML = `<html>
<body>
<h1>Colombia Huila</h1>
<table class="review-template-table">
<tr><td>Roaster</td><td>Roaster B</td></tr>
<tr><td>Price:</td><td>$20.00/12 ouncesReview Date: May 2022</td></tr>
<tr><td>Acidity:</td><td>7</td></tr>
<tr><td>Acidity/Structure:</td><td>0</td></tr>
</table>
<p><strong>With Milk:</strong> Chocolaty and rich in cappuccino-scaled milk.</p>
<p>Bottom Line: Sweet and balanced.</p>
</body>
</html>`

const espressoReviewHTML = `<html>
<body>
<h1>Espresso Blend</h1>
<table class="review-template-table">
<tr><td>Roaster:</td><td>Roaster C</td></tr>
<tr><td>Price:</td><td>N/A</td></tr>
</table>
<p>Available at €15.50 / 250g from the roaster.</p>
</body>
</html>`
